// Package orchestrator composes the stores, the focus engine and the
// assistant manager into the operations exposed to clients.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/server/service/assistant"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/filter"
)

type Orchestrator struct {
	store      *store.Store
	focus      *focus.Engine
	assistants *assistant.Manager
}

func New(st *store.Store, engine *focus.Engine, manager *assistant.Manager) *Orchestrator {
	return &Orchestrator{store: st, focus: engine, assistants: manager}
}

func (o *Orchestrator) Store() *store.Store { return o.store }
func (o *Orchestrator) Focus() *focus.Engine { return o.focus }
func (o *Orchestrator) Assistants() *assistant.Manager { return o.assistants }

// RememberRequest describes a new memory. With AssistantID set the memory is
// owned by that assistant, and Focus also puts it in the default focus group.
type RememberRequest struct {
	AssistantID string           `json:"assistant_id,omitempty"`
	Type        store.MemoryType `json:"type"`
	Name        string           `json:"name,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description"`
	Data        string           `json:"data,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Focus       bool             `json:"focus,omitempty"`
}

type DelegateRequest struct {
	AssistantID string   `json:"assistant_id"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// KnowledgeQuery selects memories. Every set criterion must hold.
type KnowledgeQuery struct {
	TagNames    []string          `json:"tags,omitempty"`
	Text        string            `json:"text,omitempty"`
	Type        *store.MemoryType `json:"type,omitempty"`
	AssistantID string            `json:"assistant_id,omitempty"`
	// Filter is a CEL expression over the memory fields.
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

func (o *Orchestrator) activeAssistant(ctx context.Context, id string) (*store.Assistant, error) {
	a, err := o.store.GetAssistantByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, errors.Wrapf(store.ErrInvalidArgument, "assistant %s is inactive", id)
	}
	return a, nil
}

// Remember stores a memory with its tags and links it to the assistant.
// Focusing regenerates the assistant's instructions; if that push fails the
// memory is still returned alongside the error.
func (o *Orchestrator) Remember(ctx context.Context, req *RememberRequest) (*store.Memory, error) {
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.Data) == "" {
		return nil, errors.Wrap(store.ErrInvalidArgument, "memory content is required")
	}
	if req.Focus && req.AssistantID == "" {
		return nil, errors.Wrap(store.ErrInvalidArgument, "focus requires an assistant")
	}
	if req.AssistantID != "" {
		if _, err := o.activeAssistant(ctx, req.AssistantID); err != nil {
			return nil, err
		}
	}
	memoryType := req.Type
	if memoryType == "" {
		memoryType = store.MemoryTypeKnowledge
	}

	m, err := o.store.CreateMemory(ctx, &store.Memory{
		Type:        memoryType,
		Name:        req.Name,
		Summary:     req.Summary,
		Description: req.Description,
		Data:        req.Data,
	})
	if err != nil {
		return nil, err
	}
	if len(req.Tags) > 0 {
		if _, err := o.store.UpdateMemoryTags(ctx, m.ID, req.Tags); err != nil {
			return m, err
		}
	}
	if req.AssistantID == "" {
		return m, nil
	}
	if _, err := o.store.AddOwnedMemory(ctx, req.AssistantID, m.ID); err != nil {
		return m, err
	}
	if req.Focus {
		if _, err := o.focusDefault(ctx, req.AssistantID, m.ID); err != nil {
			return m, err
		}
	}
	slog.Debug("remembered memory", "memory_id", m.ID, "assistant_id", req.AssistantID, "focus", req.Focus)
	return m, nil
}

func (o *Orchestrator) focusDefault(ctx context.Context, assistantID, memoryID string) (bool, error) {
	rule, err := o.focus.DefaultRule(ctx, assistantID)
	if err != nil {
		return false, err
	}
	return o.FocusMemory(ctx, rule.ID, memoryID)
}

// DelegateTask creates a pending task assigned to an active assistant.
func (o *Orchestrator) DelegateTask(ctx context.Context, req *DelegateRequest) (*store.Task, error) {
	if req.AssistantID == "" {
		return nil, errors.Wrap(store.ErrInvalidArgument, "assistant id is required")
	}
	if _, err := o.activeAssistant(ctx, req.AssistantID); err != nil {
		return nil, err
	}
	task, err := o.store.CreateTask(ctx, &store.Task{
		Description:       req.Description,
		Status:            store.TaskStatusPending,
		AssignedAssistant: req.AssistantID,
	})
	if err != nil {
		return nil, err
	}
	if len(req.Tags) > 0 {
		if err := o.store.SetEntityTags(ctx, store.EntityRef{ID: task.ID, Kind: store.EntityTask}, req.Tags); err != nil {
			return task, err
		}
	}
	slog.Info("delegated task", "task_id", task.ID, "assistant_id", req.AssistantID)
	return task, nil
}

// ConnectMemory adds the memory to the assistant's owned set and, with
// focus, to its default focus group.
func (o *Orchestrator) ConnectMemory(ctx context.Context, assistantID, memoryID string, focus bool) (bool, error) {
	if _, err := o.activeAssistant(ctx, assistantID); err != nil {
		return false, err
	}
	if _, err := o.store.AddOwnedMemory(ctx, assistantID, memoryID); err != nil {
		return false, err
	}
	if !focus {
		return true, nil
	}
	return o.focusDefault(ctx, assistantID, memoryID)
}

// DisconnectMemory removes the memory from the owned set and from every
// focus group of the assistant. It reports whether any link existed.
func (o *Orchestrator) DisconnectMemory(ctx context.Context, assistantID, memoryID string) (bool, error) {
	a, err := o.store.GetAssistantByID(ctx, assistantID)
	if err != nil {
		return false, err
	}
	removed, err := o.store.RemoveOwnedMemory(ctx, assistantID, memoryID)
	if err != nil {
		return false, err
	}
	rules, err := o.focus.ListFocusRules(ctx, assistantID)
	if err != nil {
		return false, err
	}
	unfocused := false
	for _, rule := range rules {
		ok, err := o.focus.RemoveFocusedMemory(ctx, rule.ID, memoryID)
		if err != nil {
			return false, err
		}
		unfocused = unfocused || ok
	}
	if unfocused && a.IsActive() {
		if _, err := o.assistants.SyncInstructions(ctx, assistantID); err != nil {
			return true, err
		}
	}
	return removed || unfocused, nil
}

// TagEntity attaches every named tag, creating missing tags.
func (o *Orchestrator) TagEntity(ctx context.Context, ref store.EntityRef, names []string) ([]*store.Tag, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if len(store.NormalizeTagNames(names)) == 0 {
		return nil, errors.Wrap(store.ErrInvalidArgument, "tag names are required")
	}
	ids, err := o.store.UpsertTagsByName(ctx, names)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := o.store.AttachTag(ctx, ref, id); err != nil {
			return nil, err
		}
	}
	return o.store.ListTagsForEntity(ctx, ref)
}

// UntagEntity detaches the named tags. Unknown names are ignored.
func (o *Orchestrator) UntagEntity(ctx context.Context, ref store.EntityRef, names []string) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	names = store.NormalizeTagNames(names)
	if len(names) == 0 {
		return false, errors.Wrap(store.ErrInvalidArgument, "tag names are required")
	}
	tags, err := o.store.ListTags(ctx, &store.FindTag{Names: names})
	if err != nil {
		return false, err
	}
	detached := false
	for _, tag := range tags {
		ok, err := o.store.DetachTag(ctx, ref, tag.ID)
		if err != nil {
			return false, err
		}
		detached = detached || ok
	}
	return detached, nil
}

// FocusMemory focuses the memory and regenerates the owning assistant's
// instructions when the group changed.
func (o *Orchestrator) FocusMemory(ctx context.Context, ruleID, memoryID string) (bool, error) {
	ok, err := o.focus.AddFocusedMemory(ctx, ruleID, memoryID)
	if err != nil || !ok {
		return ok, err
	}
	return true, o.syncRule(ctx, ruleID)
}

func (o *Orchestrator) UnfocusMemory(ctx context.Context, ruleID, memoryID string) (bool, error) {
	ok, err := o.focus.RemoveFocusedMemory(ctx, ruleID, memoryID)
	if err != nil || !ok {
		return ok, err
	}
	return true, o.syncRule(ctx, ruleID)
}

func (o *Orchestrator) ReplaceFocus(ctx context.Context, ruleID string, memoryIDs []string) (bool, error) {
	ok, err := o.focus.UpdateFocusedMemories(ctx, ruleID, memoryIDs)
	if err != nil {
		return false, err
	}
	return ok, o.syncRule(ctx, ruleID)
}

func (o *Orchestrator) ResizeFocus(ctx context.Context, ruleID string, maxResults int) (*store.FocusRule, error) {
	rule, err := o.focus.SetMaxResults(ctx, ruleID, maxResults)
	if err != nil {
		return nil, err
	}
	return rule, o.syncRule(ctx, ruleID)
}

// UpdateMemory edits a memory and regenerates the instructions of every
// assistant whose default focus group holds it. The memory is returned even
// when a push fails.
func (o *Orchestrator) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	rules, err := o.focusingRules(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	m, err := o.store.UpdateMemory(ctx, update)
	if err != nil {
		return nil, err
	}
	return m, o.syncRules(ctx, rules)
}

// ForgetMemory deletes a memory. Focus groups lose it through the cascade,
// so the affected rules are collected before the delete.
func (o *Orchestrator) ForgetMemory(ctx context.Context, id string) error {
	rules, err := o.focusingRules(ctx, id)
	if err != nil {
		return err
	}
	if err := o.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	return o.syncRules(ctx, rules)
}

func (o *Orchestrator) focusingRules(ctx context.Context, memoryID string) ([]*store.FocusRule, error) {
	if _, err := o.store.GetMemory(ctx, memoryID); err != nil {
		return nil, err
	}
	return o.store.ListFocusRules(ctx, &store.FindFocusRule{MemoryID: &memoryID})
}

// syncRules syncs every rule and reports the first failure.
func (o *Orchestrator) syncRules(ctx context.Context, rules []*store.FocusRule) error {
	var first error
	for _, rule := range rules {
		if err := o.syncRule(ctx, rule.ID); err != nil {
			slog.Warn("failed to sync instructions", "focus_rule_id", rule.ID, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// syncRule pushes instructions when ruleID is the default rule of an active
// assistant; other rules do not feed the instructions.
func (o *Orchestrator) syncRule(ctx context.Context, ruleID string) error {
	rule, err := o.focus.GetFocusRule(ctx, ruleID)
	if err != nil {
		return err
	}
	def, err := o.focus.DefaultRule(ctx, rule.AssistantID)
	if err != nil || def.ID != rule.ID {
		return err
	}
	a, err := o.store.GetAssistantByID(ctx, rule.AssistantID)
	if err != nil {
		return err
	}
	if !a.IsActive() {
		return nil
	}
	_, err = o.assistants.SyncInstructions(ctx, a.ID)
	return err
}

// QueryKnowledge searches memories by tags, text, type and owner, then
// applies the CEL filter. Limit and offset apply to the filtered result.
func (o *Orchestrator) QueryKnowledge(ctx context.Context, q *KnowledgeQuery) ([]*store.Memory, error) {
	var memFilter *filter.MemoryFilter
	if strings.TrimSpace(q.Filter) != "" {
		var err error
		if memFilter, err = filter.CompileMemoryFilter(q.Filter); err != nil {
			return nil, err
		}
	}
	if q.Type != nil {
		if err := q.Type.Validate(); err != nil {
			return nil, err
		}
	}

	find := &store.FindMemory{
		Type:     q.Type,
		TagNames: store.NormalizeTagNames(q.TagNames),
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		find.Query = &text
	}
	if q.AssistantID != "" {
		find.AssistantID = &q.AssistantID
	}
	if memFilter == nil {
		find.Limit, find.Offset = q.Limit, q.Offset
	}

	memories, err := o.store.ListMemories(ctx, find)
	if err != nil {
		return nil, err
	}
	if memFilter == nil {
		return memories, nil
	}
	memories, err = memFilter.Apply(memories)
	if err != nil {
		return nil, err
	}
	return page(memories, q.Limit, q.Offset), nil
}

// RelatedMemories returns memories sharing a tag with the assistant that the
// assistant does not own.
func (o *Orchestrator) RelatedMemories(ctx context.Context, assistantID string, limit int) ([]*store.Memory, error) {
	tags, err := o.store.ListTagsForEntity(ctx, store.EntityRef{ID: assistantID, Kind: store.EntityAssistant})
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		if _, err := o.store.GetAssistantByID(ctx, assistantID); err != nil {
			return nil, err
		}
		return []*store.Memory{}, nil
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	candidates, err := o.store.ListMemoriesByTagNames(ctx, names)
	if err != nil {
		return nil, err
	}
	owned, err := o.store.ListMemoriesByAssistant(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, m := range owned {
		ownedSet[m.ID] = struct{}{}
	}
	related := make([]*store.Memory, 0, len(candidates))
	for _, m := range candidates {
		if _, ok := ownedSet[m.ID]; ok {
			continue
		}
		related = append(related, m)
	}
	return page(related, limit, 0), nil
}

// RecordChatMessage stores the message content as a session memory and
// appends the message to the chat.
func (o *Orchestrator) RecordChatMessage(ctx context.Context, chatID, role, content string) (*store.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.Wrap(store.ErrInvalidArgument, "message content is required")
	}
	return o.store.CreateChatMessage(ctx, chatID, role, content)
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
