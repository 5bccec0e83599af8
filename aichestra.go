// Package aichestra provides a convenience entry point for embedding the
// orchestrator in another program.
//
// Usage:
//
//	import "github.com/aichestra/aichestra"
//
//	orc := aichestra.New(aichestra.WithLogger(logger))
//	orc.Registry.RegisterEndpoint(ctx, "http://localhost:10001")
//	result := orc.Route(ctx, "what is 2+3?")
//
// The full server binary under cmd/aichestra adds the HTTP surfaces,
// metrics, and persistence on top of the same pipeline.
package aichestra

import (
	"context"

	"go.uber.org/zap"

	"github.com/aichestra/aichestra/a2a"
	"github.com/aichestra/aichestra/orchestrator"
)

// Option configures the orchestrator created by [New].
type Option func(*options)

type options struct {
	logger        *zap.Logger
	client        a2a.Client
	scoring       orchestrator.ScoringConfig
	forward       *orchestrator.ForwardConfig
	fallbackAgent string
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClient sets the protocol client used for discovery and forwarding.
// Defaults to a plain HTTP client with standard timeouts.
func WithClient(client a2a.Client) Option {
	return func(o *options) { o.client = client }
}

// WithScoring overrides the scoring weights.
func WithScoring(cfg orchestrator.ScoringConfig) Option {
	return func(o *options) { o.scoring = cfg }
}

// WithForward overrides the task polling bounds.
func WithForward(cfg orchestrator.ForwardConfig) Option {
	return func(o *options) { o.forward = &cfg }
}

// WithFallbackAgent names the agent that receives requests no agent scored
// on. Without it, unmatched requests fail.
func WithFallbackAgent(id string) Option {
	return func(o *options) { o.fallbackAgent = id }
}

// Orchestrator is the assembled routing pipeline. The exported fields give
// access to the individual stages; the methods cover the common paths.
type Orchestrator struct {
	Registry *orchestrator.Registry
	Router   *orchestrator.Router
	Executor *orchestrator.RouterExecutor

	logger *zap.Logger
}

// New assembles a routing pipeline with the given options.
func New(opts ...Option) *Orchestrator {
	o := &options{
		scoring: orchestrator.DefaultScoringConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.client == nil {
		o.client = a2a.NewHTTPClient(nil)
	}
	if o.forward == nil {
		o.forward = orchestrator.DefaultForwardConfig()
	}

	registry := orchestrator.NewRegistry(o.client, o.logger)
	engine := orchestrator.NewScoringEngine(o.scoring)
	forwarder := orchestrator.NewForwarder(o.client, o.forward, o.logger)
	router := orchestrator.NewRouter(registry, engine, forwarder, &orchestrator.RouterConfig{
		FallbackAgentID: o.fallbackAgent,
	}, o.logger)
	executor := orchestrator.NewRouterExecutor(router, registry, o.logger)

	return &Orchestrator{
		Registry: registry,
		Router:   router,
		Executor: executor,
		logger:   o.logger,
	}
}

// Route analyzes the request, forwards it to the winning agent, and returns
// the full routing result.
func (o *Orchestrator) Route(ctx context.Context, requestText string) orchestrator.RoutingResult {
	return o.Router.Route(ctx, requestText)
}

// Execute handles one protocol request and renders the outcome as text, the
// way the served orchestrator answers peers.
func (o *Orchestrator) Execute(ctx context.Context, requestText string) (string, error) {
	return o.Executor.Execute(ctx, requestText)
}

// Handler mounts the pipeline behind an agent-protocol HTTP handler
// publishing descriptor.
func (o *Orchestrator) Handler(descriptor a2a.AgentDescriptor) *a2a.Handler {
	return a2a.NewHandler(descriptor, o.Executor, o.logger)
}
