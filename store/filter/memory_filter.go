// Package filter evaluates CEL expressions against stored records.
package filter

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

// MemoryFilter is a compiled boolean expression over memory fields.
// Supported variables: id, type, name, summary, description, data (strings)
// and created_ts, updated_ts (ints), e.g.
//
//	type == "knowledge" && name.startsWith("faq")
type MemoryFilter struct {
	source  string
	program cel.Program
}

func memoryEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("summary", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("data", cel.StringType),
		cel.Variable("created_ts", cel.IntType),
		cel.Variable("updated_ts", cel.IntType),
	)
}

// CompileMemoryFilter parses and type-checks expr. Invalid or non-boolean
// expressions fail with store.ErrInvalidArgument.
func CompileMemoryFilter(expr string) (*MemoryFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.Wrap(store.ErrInvalidArgument, "filter expression is empty")
	}

	env, err := memoryEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	celAST, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(store.ErrInvalidArgument, "invalid filter expression %q: %v", expr, issues.Err())
	}
	if celAST.OutputType().String() != cel.BoolType.String() {
		return nil, errors.Wrapf(store.ErrInvalidArgument, "filter expression %q must evaluate to bool", expr)
	}

	program, err := env.Program(celAST)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build CEL program")
	}
	return &MemoryFilter{source: expr, program: program}, nil
}

func (f *MemoryFilter) String() string {
	return f.source
}

// Match reports whether m satisfies the filter.
func (f *MemoryFilter) Match(m *store.Memory) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"id":          m.ID,
		"type":        string(m.Type),
		"name":        m.Name,
		"summary":     m.Summary,
		"description": m.Description,
		"data":        m.Data,
		"created_ts":  m.CreatedTs,
		"updated_ts":  m.UpdatedTs,
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate filter %q", f.source)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter %q produced %T", f.source, out.Value())
	}
	return matched, nil
}

// Apply returns the memories that satisfy the filter, preserving order.
func (f *MemoryFilter) Apply(memories []*store.Memory) ([]*store.Memory, error) {
	result := make([]*store.Memory, 0, len(memories))
	for _, m := range memories {
		ok, err := f.Match(m)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, m)
		}
	}
	return result, nil
}
