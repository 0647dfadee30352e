// Package assistant coordinates the assistant lifecycle between the local
// store and the remote AI provider.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/cortex/ai/instruction"
	"github.com/hrygo/cortex/ai/metrics"
	"github.com/hrygo/cortex/ai/provider"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/store"
)

// SeedMemoryName names the instruction memory written with a new assistant.
const SeedMemoryName = "instructions"

// Manager drives assistants through nonexistent -> active -> inactive.
type Manager struct {
	store   *store.Store
	focus   *focus.Engine
	client  provider.AssistantClient
	profile *profile.Profile
	metrics *metrics.PrometheusExporter
}

// NewManager wires the manager. client may be nil when no assistant of type
// "assistant" is ever created; such calls then fail with ErrRemoteProvider.
func NewManager(st *store.Store, engine *focus.Engine, client provider.AssistantClient, p *profile.Profile, m *metrics.PrometheusExporter) *Manager {
	return &Manager{
		store:   st,
		focus:   engine,
		client:  client,
		profile: p,
		metrics: m,
	}
}

type CreateRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Type         store.AssistantType `json:"type"`
	Model        string              `json:"model"`
	Instructions string              `json:"instructions"`
	// MaxResults sets the capacity of the default focus rule.
	MaxResults *int     `json:"max_results,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Model       *string `json:"model,omitempty"`
}

type ListRequest struct {
	IncludeInactive bool
	Type            *store.AssistantType
	TagNames        []string
	Limit           int
	Offset          int
}

// Detail is the assembled view of one assistant.
type Detail struct {
	Assistant       *store.Assistant         `json:"assistant"`
	OwnedMemories   []*store.Memory          `json:"owned_memories"`
	FocusedMemories []*store.Memory          `json:"focused_memories"`
	FocusRules      []*store.FocusRule       `json:"focus_rules"`
	Tags            []*store.Tag             `json:"tags"`
	Instructions    string                   `json:"instructions"`
	Remote          *provider.RemoteAssistant `json:"remote,omitempty"`
}

func (m *Manager) remote() (provider.AssistantClient, error) {
	if m.client == nil {
		return nil, errors.Wrap(provider.ErrRemoteProvider, "no provider configured")
	}
	return m.client, nil
}

func (m *Manager) record(operation string, start time.Time, err error) {
	m.metrics.RecordLifecycle(operation, time.Since(start), err == nil)
}

func (m *Manager) findActiveByName(ctx context.Context, name string) (*store.Assistant, error) {
	list, err := m.store.ListAssistants(ctx, &store.FindAssistant{Name: &name, ExcludeInactive: true})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// Create returns the id of the active assistant named req.Name, creating it
// when absent. A remote resource is created first for remote types; the
// assistant, its default focus rule and its seed instruction memory are then
// written in one transaction.
func (m *Manager) Create(ctx context.Context, req *CreateRequest) (id string, err error) {
	start := time.Now()
	defer func() { m.record("create", start, err) }()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", errors.Wrap(store.ErrInvalidArgument, "assistant name is required")
	}
	if err := req.Type.Validate(); err != nil {
		return "", err
	}
	capacity := m.focus.DefaultCapacity()
	if req.MaxResults != nil {
		capacity = *req.MaxResults
	}
	if capacity < 0 {
		return "", errors.Wrap(store.ErrInvalidArgument, "max results must not be negative")
	}

	existing, err := m.findActiveByName(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		slog.Debug("assistant already exists", "assistant_id", existing.ID, "name", name)
		return existing.ID, nil
	}

	model := req.Model
	if model == "" && m.profile != nil {
		model = m.profile.ProviderModel
	}
	instructions := strings.TrimSpace(req.Instructions)

	a := &store.Assistant{
		Name:        name,
		Description: req.Description,
		Type:        req.Type,
		Model:       model,
	}
	seed := &store.SeedInstruction{
		FocusRule: &store.FocusRule{Name: store.DefaultFocusRuleName, MaxResults: capacity},
	}
	if instructions != "" {
		seed.Memory = &store.Memory{
			Type:        store.MemoryTypeInstruction,
			Name:        SeedMemoryName,
			Description: instructions,
		}
	}

	if req.Type.IsRemote() {
		client, err := m.remote()
		if err != nil {
			return "", err
		}
		var live []*store.Memory
		if seed.Memory != nil && capacity > 0 {
			live = append(live, seed.Memory)
		}
		created, err := client.CreateAssistant(ctx, &provider.CreateRemoteAssistant{
			Model:        model,
			Name:         name,
			Description:  req.Description,
			Instructions: instruction.Synthesize(live),
		})
		if err != nil {
			return "", err
		}
		a.RemoteAssistantID = created.ID
	}

	stored, err := m.store.CreateAssistant(ctx, &store.CreateAssistant{Assistant: a, Seed: seed})
	if err != nil {
		if a.RemoteAssistantID != "" {
			m.compensateRemote(ctx, a.RemoteAssistantID)
		}
		if errors.Is(err, store.ErrConflict) {
			winner, lookupErr := m.findActiveByName(ctx, name)
			if lookupErr == nil && winner != nil {
				return winner.ID, nil
			}
		}
		return "", err
	}

	if len(req.Tags) > 0 {
		if err := m.store.SetEntityTags(ctx, store.EntityRef{ID: stored.ID, Kind: store.EntityAssistant}, req.Tags); err != nil {
			return stored.ID, errors.Wrap(err, "failed to tag assistant")
		}
	}

	slog.Info("created assistant",
		"assistant_id", stored.ID,
		"name", stored.Name,
		"type", string(stored.Type),
		"remote_assistant_id", stored.RemoteAssistantID,
	)
	return stored.ID, nil
}

// compensateRemote removes a remote resource whose local record was never
// written. Failures are only logged.
func (m *Manager) compensateRemote(ctx context.Context, remoteID string) {
	client, err := m.remote()
	if err != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := client.DeleteAssistant(ctx, remoteID); err != nil {
		slog.Warn("failed to delete orphaned remote assistant", "remote_assistant_id", remoteID, "error", err)
	}
}

// Update re-synthesizes the instructions from the focused memories and, for
// remote assistants, pushes them with the changed fields before the local
// write. A failed push reports false and leaves the local row untouched.
func (m *Manager) Update(ctx context.Context, id string, req *UpdateRequest) (ok bool, err error) {
	start := time.Now()
	defer func() { m.record("update", start, err) }()

	a, err := m.store.GetAssistantByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !a.IsActive() {
		return false, errors.Wrapf(store.ErrInvalidArgument, "assistant %s is inactive", id)
	}
	if req == nil {
		req = &UpdateRequest{}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return false, errors.Wrap(store.ErrInvalidArgument, "assistant name cannot be empty")
		}
		req.Name = &name
		holder, err := m.findActiveByName(ctx, name)
		if err != nil {
			return false, err
		}
		if holder != nil && holder.ID != id {
			return false, errors.Wrapf(store.ErrConflict, "assistant %q already exists", name)
		}
	}

	if a.Type.IsRemote() {
		if _, err := m.pushInstructions(ctx, a, req); err != nil {
			return false, err
		}
	}

	if _, err := m.store.UpdateAssistant(ctx, &store.UpdateAssistant{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Model:       req.Model,
	}); err != nil {
		if a.Type.IsRemote() {
			m.restoreRemote(ctx, a)
		}
		return false, err
	}
	slog.Info("updated assistant", "assistant_id", id)
	return true, nil
}

// restoreRemote pushes the stored name, description and model back after a
// local write failed behind a successful push. Failures are only logged.
func (m *Manager) restoreRemote(ctx context.Context, a *store.Assistant) {
	client, err := m.remote()
	if err != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := client.UpdateAssistant(ctx, a.RemoteAssistantID, &provider.UpdateRemoteAssistant{
		Model:       a.Model,
		Name:        &a.Name,
		Description: &a.Description,
	}); err != nil {
		slog.Warn("failed to restore remote assistant", "assistant_id", a.ID, "remote_assistant_id", a.RemoteAssistantID, "error", err)
	}
}

// SyncInstructions returns the instructions synthesized from the focused
// memories, pushing them to the remote resource for remote assistants.
func (m *Manager) SyncInstructions(ctx context.Context, id string) (string, error) {
	a, err := m.store.GetAssistantByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !a.IsActive() || !a.Type.IsRemote() {
		return m.instructions(ctx, id)
	}
	return m.pushInstructions(ctx, a, &UpdateRequest{})
}

func (m *Manager) instructions(ctx context.Context, assistantID string) (string, error) {
	focused, err := m.focusedMemories(ctx, assistantID)
	if err != nil {
		return "", err
	}
	return instruction.Synthesize(focused), nil
}

func (m *Manager) pushInstructions(ctx context.Context, a *store.Assistant, req *UpdateRequest) (string, error) {
	client, err := m.remote()
	if err != nil {
		return "", err
	}
	text, err := m.instructions(ctx, a.ID)
	if err != nil {
		return "", err
	}
	model := a.Model
	if req.Model != nil {
		model = *req.Model
	}
	if err := client.UpdateAssistant(ctx, a.RemoteAssistantID, &provider.UpdateRemoteAssistant{
		Model:        model,
		Name:         req.Name,
		Description:  req.Description,
		Instructions: &text,
	}); err != nil {
		slog.Warn("failed to push assistant to provider", "assistant_id", a.ID, "error", err)
		return "", err
	}
	return text, nil
}

// focusedMemories reads the default focus group; an assistant without any
// rule has no focused memories.
func (m *Manager) focusedMemories(ctx context.Context, assistantID string) ([]*store.Memory, error) {
	focused, err := m.focus.GetFocusedMemoriesByAssistantID(ctx, assistantID, 0)
	if errors.Is(err, store.ErrNotFound) {
		return []*store.Memory{}, nil
	}
	return focused, err
}

// Delete soft-deletes the assistant. Deleting an inactive assistant succeeds
// without change. The remote resource is only removed when the profile asks
// for it, and a failure there keeps the assistant active.
func (m *Manager) Delete(ctx context.Context, id string) (ok bool, err error) {
	start := time.Now()
	defer func() { m.record("delete", start, err) }()

	a, err := m.store.GetAssistantByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !a.IsActive() {
		return true, nil
	}

	removedRemote := false
	if a.Type.IsRemote() && m.profile != nil && m.profile.DeleteRemoteOnSoftDelete {
		client, err := m.remote()
		if err != nil {
			return false, err
		}
		if err := client.DeleteAssistant(ctx, a.RemoteAssistantID); err != nil {
			return false, err
		}
		removedRemote = true
	}

	if err := m.store.DeactivateAssistant(ctx, a, removedRemote); err != nil {
		return false, err
	}
	slog.Info("deactivated assistant", "assistant_id", id, "name", a.Name)
	return true, nil
}

// Get returns the assistant whether or not it is active.
func (m *Manager) Get(ctx context.Context, id string) (*store.Assistant, error) {
	return m.store.GetAssistantByID(ctx, id)
}

func (m *Manager) List(ctx context.Context, req *ListRequest) ([]*store.Assistant, error) {
	if req == nil {
		req = &ListRequest{}
	}
	return m.store.ListAssistants(ctx, &store.FindAssistant{
		Type:            req.Type,
		TagNames:        store.NormalizeTagNames(req.TagNames),
		ExcludeInactive: !req.IncludeInactive,
		Limit:           req.Limit,
		Offset:          req.Offset,
	})
}

// Detail loads the assistant together with its memories, rules and tags.
// includeRemote also fetches the remote resource of remote assistants.
func (m *Manager) Detail(ctx context.Context, id string, includeRemote bool) (*Detail, error) {
	a, err := m.store.GetAssistantByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &Detail{Assistant: a}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		owned, err := m.store.ListMemoriesByAssistant(gctx, id)
		detail.OwnedMemories = owned
		return err
	})
	g.Go(func() error {
		focused, err := m.focusedMemories(gctx, id)
		detail.FocusedMemories = focused
		detail.Instructions = instruction.Synthesize(focused)
		return err
	})
	g.Go(func() error {
		rules, err := m.focus.ListFocusRules(gctx, id)
		detail.FocusRules = rules
		return err
	})
	g.Go(func() error {
		tags, err := m.store.ListTagsForEntity(gctx, store.EntityRef{ID: id, Kind: store.EntityAssistant})
		detail.Tags = tags
		return err
	})
	if includeRemote && a.Type.IsRemote() {
		g.Go(func() error {
			client, err := m.remote()
			if err != nil {
				return err
			}
			remote, err := client.GetAssistant(gctx, a.RemoteAssistantID)
			detail.Remote = remote
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}
