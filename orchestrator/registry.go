package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aichestra/aichestra/a2a"
)

// refreshParallelism bounds how many descriptor fetches RefreshAll runs at
// once.
const refreshParallelism = 4

// EventKind tells registry subscribers what changed.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventUnregistered EventKind = "unregistered"
)

// Event describes one registry change.
type Event struct {
	Kind       EventKind
	Descriptor CapabilityDescriptor
}

// Registry is the in-memory agent registry. Descriptors are kept in
// insertion order; registering an existing ID replaces the descriptor in
// place without moving it. All reads hand out deep copies, so callers can
// never observe or cause a partial update, and no lock is ever held across
// network I/O.
type Registry struct {
	client a2a.Client
	logger *zap.Logger

	mu              sync.RWMutex
	descriptors     map[string]*CapabilityDescriptor
	order           []string
	subscribers     []func(Event)
	refreshObserver func(agentID string, err error)
}

// NewRegistry creates an empty registry. The client is used for
// endpoint-based registration and refresh; a registry built with a nil
// client still supports direct registration. A nil logger defaults to a
// no-op logger.
func NewRegistry(client a2a.Client, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		client:      client,
		logger:      logger.With(zap.String("component", "registry")),
		descriptors: make(map[string]*CapabilityDescriptor),
	}
}

// Register inserts descriptor, or replaces the stored descriptor when the ID
// is already present. Replacement keeps the agent's original insertion
// position. A descriptor without an ID or endpoint is rejected and the
// registry is left unchanged.
func (r *Registry) Register(descriptor CapabilityDescriptor) error {
	if descriptor.ID == "" {
		return NewValidationError("descriptor is missing an id")
	}
	if descriptor.Endpoint == "" {
		return NewValidationError("descriptor is missing an endpoint")
	}

	stored := descriptor.Clone()
	normalizeWeights(&stored)

	r.mu.Lock()
	if _, exists := r.descriptors[stored.ID]; !exists {
		r.order = append(r.order, stored.ID)
	}
	r.descriptors[stored.ID] = &stored
	subs := append([]func(Event){}, r.subscribers...)
	r.mu.Unlock()

	r.logger.Info("agent registered",
		zap.String("agent_id", stored.ID),
		zap.String("endpoint", stored.Endpoint),
		zap.Int("skills", len(stored.Skills)))

	notify(subs, Event{Kind: EventRegistered, Descriptor: stored.Clone()})
	return nil
}

// Unregister removes the descriptor with the given ID and reports whether
// anything was removed. Unknown IDs are a no-op.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	stored, ok := r.descriptors[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.descriptors, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	removed := stored.Clone()
	subs := append([]func(Event){}, r.subscribers...)
	r.mu.Unlock()

	r.logger.Info("agent unregistered", zap.String("agent_id", id))

	notify(subs, Event{Kind: EventUnregistered, Descriptor: removed})
	return true
}

// Get returns a copy of the descriptor with the given ID.
func (r *Registry) Get(id string) (CapabilityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.descriptors[id]
	if !ok {
		return CapabilityDescriptor{}, false
	}
	return stored.Clone(), true
}

// List returns a deep-copied snapshot of all descriptors in insertion
// order. Scoring runs against such a snapshot, never against live registry
// state.
func (r *Registry) List() []CapabilityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CapabilityDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id].Clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Resolve finds a descriptor by exact ID, exact endpoint, case-insensitive
// display name, or endpoint fragment, in that order. It lets operators
// unregister an agent by whichever identifier they have at hand.
func (r *Registry) Resolve(identifier string) (CapabilityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if stored, ok := r.descriptors[identifier]; ok {
		return stored.Clone(), true
	}
	for _, id := range r.order {
		if r.descriptors[id].Endpoint == identifier {
			return r.descriptors[id].Clone(), true
		}
	}
	for _, id := range r.order {
		if strings.EqualFold(r.descriptors[id].DisplayName, identifier) {
			return r.descriptors[id].Clone(), true
		}
	}
	if identifier != "" {
		for _, id := range r.order {
			if strings.Contains(r.descriptors[id].Endpoint, identifier) {
				return r.descriptors[id].Clone(), true
			}
		}
	}
	return CapabilityDescriptor{}, false
}

// RegisterEndpoint discovers the agent at endpoint and registers the
// descriptor built from its published document.
func (r *Registry) RegisterEndpoint(ctx context.Context, endpoint string) (CapabilityDescriptor, error) {
	if endpoint == "" {
		return CapabilityDescriptor{}, NewValidationError("endpoint is required")
	}
	if r.client == nil {
		return CapabilityDescriptor{}, NewError(CodeInternal, "registry has no protocol client")
	}

	doc, err := r.client.Discover(ctx, endpoint)
	if err != nil {
		return CapabilityDescriptor{}, NewNetworkError(
			fmt.Sprintf("failed to discover agent at %s", endpoint), err)
	}

	descriptor := DescriptorFromDocument(doc)
	if err := r.Register(descriptor); err != nil {
		return CapabilityDescriptor{}, err
	}
	return descriptor, nil
}

// RefreshAll re-discovers every registered agent and replaces its
// descriptor with the freshly published one. An agent that publishes a new
// name is re-registered under it and the stale entry is removed. Fetches
// run concurrently with bounded parallelism; per-agent failures are
// reported in the returned map and leave the previous descriptor in place.
func (r *Registry) RefreshAll(ctx context.Context) map[string]error {
	if r.client == nil {
		return nil
	}

	// Drop cached descriptors so the refresh observes live documents.
	if cc, ok := r.client.(interface{ ClearCache() }); ok {
		cc.ClearCache()
	}

	r.mu.RLock()
	observer := r.refreshObserver
	r.mu.RUnlock()

	snapshot := r.List()
	results := make(map[string]error, len(snapshot))
	var resultsMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)
	for _, descriptor := range snapshot {
		g.Go(func() error {
			fresh, err := r.RegisterEndpoint(ctx, descriptor.Endpoint)
			if err != nil {
				r.logger.Warn("agent refresh failed",
					zap.String("agent_id", descriptor.ID),
					zap.String("endpoint", descriptor.Endpoint),
					zap.Error(err))
			} else if fresh.ID != descriptor.ID {
				r.logger.Info("agent renamed on refresh",
					zap.String("old_id", descriptor.ID),
					zap.String("new_id", fresh.ID))
				r.Unregister(descriptor.ID)
			}
			resultsMu.Lock()
			results[descriptor.ID] = err
			resultsMu.Unlock()
			if observer != nil {
				observer(descriptor.ID, err)
			}
			return nil
		})
	}
	// Workers never return errors; failures travel through the results map.
	_ = g.Wait()
	return results
}

// Subscribe registers a callback invoked after every registry change.
// Callbacks run outside the registry lock and must not block for long.
// Subscriptions last for the registry's lifetime.
func (r *Registry) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// SetRefreshObserver installs a callback invoked once per agent after each
// RefreshAll attempt, with a nil error on success. It may run concurrently
// with other refresh attempts. Pass nil to remove the observer.
func (r *Registry) SetRefreshObserver(fn func(agentID string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshObserver = fn
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

// DescriptorFromDocument converts a discovered agent document into a
// registry descriptor. The agent's name doubles as its registry ID, skills
// carry full confidence weight, and the document's description is kept as
// metadata.
func DescriptorFromDocument(doc *a2a.AgentDescriptor) CapabilityDescriptor {
	descriptor := CapabilityDescriptor{
		ID:          doc.Name,
		DisplayName: doc.Name,
		Endpoint:    doc.URL,
	}
	for _, skill := range doc.Skills {
		s := Skill{Name: skill.Name, ConfidenceWeight: 1.0}
		if skill.Tags != nil {
			s.Tags = append([]string(nil), skill.Tags...)
		}
		descriptor.Skills = append(descriptor.Skills, s)
	}
	if doc.Description != "" {
		descriptor.Metadata = map[string]string{"description": doc.Description}
	}
	return descriptor
}

// normalizeWeights clamps skill confidence weights into [0, 1] so a stored
// descriptor can never drive a score negative or past the confidence cap.
func normalizeWeights(d *CapabilityDescriptor) {
	for i := range d.Skills {
		if d.Skills[i].ConfidenceWeight < 0 {
			d.Skills[i].ConfidenceWeight = 0
		} else if d.Skills[i].ConfidenceWeight > 1 {
			d.Skills[i].ConfidenceWeight = 1
		}
	}
}
