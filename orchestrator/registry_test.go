package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aichestra/aichestra/a2a"
	"github.com/aichestra/aichestra/testutil/mocks"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, zap.NewNop())
}

func descriptorNamed(id string) CapabilityDescriptor {
	return CapabilityDescriptor{
		ID:          id,
		DisplayName: id,
		Endpoint:    "http://" + id + ".local",
		Skills:      []Skill{NewSkill("skill-"+id, "tag-"+id)},
	}
}

func TestRegisterRejectsMissingID(t *testing.T) {
	registry := newTestRegistry()

	err := registry.Register(CapabilityDescriptor{Endpoint: "http://a"})

	require.Error(t, err)
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, 0, registry.Len())
}

func TestRegisterRejectsMissingEndpoint(t *testing.T) {
	registry := newTestRegistry()

	err := registry.Register(CapabilityDescriptor{ID: "a"})

	require.Error(t, err)
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, 0, registry.Len())
}

func TestRegisterAndGet(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(descriptorNamed("math")))

	got, ok := registry.Get("math")
	require.True(t, ok)
	assert.Equal(t, "math", got.ID)
	assert.Equal(t, "http://math.local", got.Endpoint)

	_, ok = registry.Get("ghost")
	assert.False(t, ok)
}

func TestRegisterStoresCopy(t *testing.T) {
	registry := newTestRegistry()
	descriptor := descriptorNamed("math")
	require.NoError(t, registry.Register(descriptor))

	// Mutating the caller's descriptor after registration must not leak
	// into the stored copy, and vice versa.
	descriptor.Skills[0].Tags[0] = "mutated"
	got, ok := registry.Get("math")
	require.True(t, ok)
	assert.Equal(t, "tag-math", got.Skills[0].Tags[0])

	got.Skills[0].Tags[0] = "mutated again"
	again, ok := registry.Get("math")
	require.True(t, ok)
	assert.Equal(t, "tag-math", again.Skills[0].Tags[0])
}

func TestRegisterClampsConfidenceWeights(t *testing.T) {
	registry := newTestRegistry()
	descriptor := CapabilityDescriptor{
		ID:       "clamped",
		Endpoint: "http://clamped.local",
		Skills: []Skill{
			{Name: "low", Tags: []string{"a"}, ConfidenceWeight: -0.5},
			{Name: "high", Tags: []string{"b"}, ConfidenceWeight: 1.5},
		},
	}
	require.NoError(t, registry.Register(descriptor))

	got, ok := registry.Get("clamped")
	require.True(t, ok)
	assert.Zero(t, got.Skills[0].ConfidenceWeight)
	assert.Equal(t, 1.0, got.Skills[1].ConfidenceWeight)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(descriptorNamed("currency")))
	require.NoError(t, registry.Register(descriptorNamed("math")))
	require.NoError(t, registry.Register(descriptorNamed("weather")))

	snapshot := registry.List()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "currency", snapshot[0].ID)
	assert.Equal(t, "math", snapshot[1].ID)
	assert.Equal(t, "weather", snapshot[2].ID)
}

func TestReplaceKeepsInsertionPosition(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(descriptorNamed("first")))
	require.NoError(t, registry.Register(descriptorNamed("second")))

	replacement := descriptorNamed("first")
	replacement.DisplayName = "First (updated)"
	require.NoError(t, registry.Register(replacement))

	snapshot := registry.List()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "first", snapshot[0].ID)
	assert.Equal(t, "First (updated)", snapshot[0].DisplayName)
	assert.Equal(t, "second", snapshot[1].ID)
}

func TestUnregister(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(descriptorNamed("a")))
	require.NoError(t, registry.Register(descriptorNamed("b")))
	require.NoError(t, registry.Register(descriptorNamed("c")))

	assert.True(t, registry.Unregister("b"))
	assert.False(t, registry.Unregister("b"))
	assert.Equal(t, 2, registry.Len())

	snapshot := registry.List()
	assert.Equal(t, "a", snapshot[0].ID)
	assert.Equal(t, "c", snapshot[1].ID)
}

func TestResolve(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:          "math_agent",
		DisplayName: "Math Agent",
		Endpoint:    "http://localhost:10001",
	}))

	cases := []struct {
		name       string
		identifier string
		found      bool
	}{
		{name: "by id", identifier: "math_agent", found: true},
		{name: "by endpoint", identifier: "http://localhost:10001", found: true},
		{name: "by display name", identifier: "math agent", found: true},
		{name: "by endpoint fragment", identifier: "10001", found: true},
		{name: "unknown", identifier: "ghost", found: false},
		{name: "empty", identifier: "", found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := registry.Resolve(tc.identifier)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, "math_agent", got.ID)
			}
		})
	}
}

func TestResolvePrefersExactID(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "alpha",
		Endpoint: "http://host/beta",
	}))
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "beta",
		Endpoint: "http://host/other",
	}))

	// "beta" is also a fragment of the first agent's endpoint; the exact ID
	// match must win.
	got, ok := registry.Resolve("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", got.ID)
}

func TestRegisterEndpoint(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	client.SetDescriptor("http://localhost:10001", &a2a.AgentDescriptor{
		Name:        "Math Agent",
		Description: "Solves arithmetic problems",
		URL:         "http://localhost:10001",
		Skills: []a2a.AgentSkill{
			{Name: "arithmetic", Tags: []string{"calculate", "+", "-"}},
		},
	})

	descriptor, err := registry.RegisterEndpoint(context.Background(), "http://localhost:10001")
	require.NoError(t, err)

	// The document's name doubles as the registry ID, discovered skills
	// carry full confidence weight, and no keywords are synthesized.
	assert.Equal(t, "Math Agent", descriptor.ID)
	assert.Equal(t, "Math Agent", descriptor.DisplayName)
	assert.Equal(t, "http://localhost:10001", descriptor.Endpoint)
	require.Len(t, descriptor.Skills, 1)
	assert.Equal(t, 1.0, descriptor.Skills[0].ConfidenceWeight)
	assert.Equal(t, []string{"calculate", "+", "-"}, descriptor.Skills[0].Tags)
	assert.Empty(t, descriptor.Keywords)
	assert.Equal(t, "Solves arithmetic problems", descriptor.Metadata["description"])

	assert.Equal(t, 1, registry.Len())
}

func TestRegisterEndpointEmpty(t *testing.T) {
	registry := NewRegistry(mocks.NewClient(), zap.NewNop())

	_, err := registry.RegisterEndpoint(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestRegisterEndpointWithoutClient(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.RegisterEndpoint(context.Background(), "http://localhost:10001")

	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestRegisterEndpointDiscoveryFailure(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	cause := errors.New("connection refused")
	client.SetDiscoverErr(cause)

	_, err := registry.RegisterEndpoint(context.Background(), "http://localhost:10001")

	require.Error(t, err)
	assert.Equal(t, CodeNetwork, CodeOf(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, registry.Len())
}

func TestRefreshAllUpdatesDescriptors(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	client.SetDescriptor("http://localhost:10001", &a2a.AgentDescriptor{
		Name: "Math Agent",
		URL:  "http://localhost:10001",
		Skills: []a2a.AgentSkill{
			{Name: "arithmetic", Tags: []string{"calculate"}},
		},
	})
	_, err := registry.RegisterEndpoint(context.Background(), "http://localhost:10001")
	require.NoError(t, err)

	// The agent publishes an extra skill; a refresh picks it up in place.
	client.SetDescriptor("http://localhost:10001", &a2a.AgentDescriptor{
		Name: "Math Agent",
		URL:  "http://localhost:10001",
		Skills: []a2a.AgentSkill{
			{Name: "arithmetic", Tags: []string{"calculate"}},
			{Name: "algebra", Tags: []string{"solve", "equation"}},
		},
	})

	results := registry.RefreshAll(context.Background())

	require.Len(t, results, 1)
	assert.NoError(t, results["Math Agent"])
	assert.Equal(t, 1, client.CacheClears())

	got, ok := registry.Get("Math Agent")
	require.True(t, ok)
	assert.Equal(t, []string{"arithmetic", "algebra"}, got.SkillNames())
	assert.Equal(t, 1, registry.Len())
}

func TestRefreshAllReplacesRenamedAgent(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "math_agent",
		Endpoint: "http://localhost:10001",
	}))

	// The agent now publishes itself under a different name.
	client.SetDescriptor("http://localhost:10001", &a2a.AgentDescriptor{
		Name: "Math Agent",
		URL:  "http://localhost:10001",
	})

	results := registry.RefreshAll(context.Background())

	require.Len(t, results, 1)
	assert.NoError(t, results["math_agent"])

	assert.Equal(t, 1, registry.Len())
	_, stale := registry.Get("math_agent")
	assert.False(t, stale)
	_, fresh := registry.Get("Math Agent")
	assert.True(t, fresh)
}

func TestRefreshAllKeepsStaleDescriptorOnFailure(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "math_agent",
		Endpoint: "http://localhost:10001",
		Skills:   []Skill{NewSkill("arithmetic", "calculate")},
	}))
	client.SetDiscoverErr(errors.New("agent offline"))

	results := registry.RefreshAll(context.Background())

	require.Len(t, results, 1)
	require.Error(t, results["math_agent"])
	assert.Equal(t, CodeNetwork, CodeOf(results["math_agent"]))

	got, ok := registry.Get("math_agent")
	require.True(t, ok)
	assert.Equal(t, []string{"arithmetic"}, got.SkillNames())
}

func TestRefreshAllWithoutClient(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.Register(descriptorNamed("a")))

	assert.Nil(t, registry.RefreshAll(context.Background()))
}

func TestRefreshAllNotifiesObserver(t *testing.T) {
	client := mocks.NewClient()
	registry := NewRegistry(client, zap.NewNop())
	client.SetDescriptor("http://localhost:10001", &a2a.AgentDescriptor{
		Name: "math_agent",
		URL:  "http://localhost:10001",
	})
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "math_agent",
		Endpoint: "http://localhost:10001",
	}))
	require.NoError(t, registry.Register(CapabilityDescriptor{
		ID:       "ghost_agent",
		Endpoint: "http://localhost:19999",
	}))

	var mu sync.Mutex
	outcomes := make(map[string]bool)
	registry.SetRefreshObserver(func(agentID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[agentID] = err == nil
	})

	registry.RefreshAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"math_agent": true, "ghost_agent": false}, outcomes)
}

func TestSubscribe(t *testing.T) {
	registry := newTestRegistry()

	var mu sync.Mutex
	var events []Event
	registry.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	require.NoError(t, registry.Register(descriptorNamed("math")))
	registry.Unregister("math")
	registry.Unregister("ghost")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, EventRegistered, events[0].Kind)
	assert.Equal(t, "math", events[0].Descriptor.ID)
	assert.Equal(t, EventUnregistered, events[1].Kind)
	assert.Equal(t, "math", events[1].Descriptor.ID)
}

func TestSubscriberMayCallBackIntoRegistry(t *testing.T) {
	registry := newTestRegistry()

	var sizes []int
	registry.Subscribe(func(Event) {
		// Callbacks run outside the registry lock, so reading registry
		// state from one must not deadlock.
		sizes = append(sizes, registry.Len())
	})

	require.NoError(t, registry.Register(descriptorNamed("a")))
	require.NoError(t, registry.Register(descriptorNamed("b")))
	registry.Unregister("a")

	assert.Equal(t, []int{1, 2, 1}, sizes)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("agent-%d-%d", n, j)
				_ = registry.Register(descriptorNamed(id))
				registry.List()
				_, _ = registry.Get(id)
				registry.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, registry.Len())
}
