// Package instruction turns focused memories into assistant instructions.
package instruction

import (
	"strings"

	"github.com/hrygo/cortex/store"
)

// Separator joins the text of consecutive memories.
const Separator = "\n\n"

// Synthesize concatenates the text of memories in the given order. A memory
// contributes its trimmed description, or its data when the description is
// blank; memories with no text are skipped. The result is deterministic and
// empty for empty input.
func Synthesize(memories []*store.Memory) string {
	parts := make([]string, 0, len(memories))
	for _, m := range memories {
		if text := Text(m); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, Separator)
}

// Text returns the instruction text a single memory contributes.
func Text(m *store.Memory) string {
	if m == nil {
		return ""
	}
	if text := strings.TrimSpace(m.Description); text != "" {
		return text
	}
	return strings.TrimSpace(m.Data)
}
