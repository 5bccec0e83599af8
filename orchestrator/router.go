package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterConfig holds routing behavior that is not a scoring weight.
type RouterConfig struct {
	// FallbackAgentID names the agent that receives requests no agent
	// scored on. Empty means no fallback: unmatched requests fail with
	// CodeNoMatchingAgent.
	FallbackAgentID string
}

// RouteObserver is notified once per Route call with the assembled result
// and its wall-clock duration. The serving layer uses it to record metrics
// without coupling this package to a metrics backend.
type RouteObserver func(result *RoutingResult, elapsed time.Duration)

// Router runs the two-phase routing workflow: analyze the request against
// the registry snapshot, then forward it to the winning agent. Every call
// works on its own RouterState, so concurrent requests never interact.
type Router struct {
	registry  *Registry
	scoring   *ScoringEngine
	forwarder *Forwarder
	config    *RouterConfig
	logger    *zap.Logger
	tracer    trace.Tracer
	observer  RouteObserver
}

// NewRouter wires the routing workflow. A nil engine falls back to default
// weights, a nil config means no fallback agent, and a nil logger defaults
// to a no-op logger.
func NewRouter(registry *Registry, engine *ScoringEngine, forwarder *Forwarder, config *RouterConfig, logger *zap.Logger) *Router {
	if engine == nil {
		engine = NewScoringEngine(DefaultScoringConfig())
	}
	if config == nil {
		config = &RouterConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:  registry,
		scoring:   engine,
		forwarder: forwarder,
		config:    config,
		logger:    logger.With(zap.String("component", "router")),
		tracer:    otel.Tracer("github.com/aichestra/aichestra/orchestrator"),
	}
}

// SetObserver registers the route observer. Call before serving traffic;
// the field is not synchronized.
func (r *Router) SetObserver(observer RouteObserver) {
	r.observer = observer
}

// Route processes one request end to end and always returns an assembled
// RoutingResult; failures are reported inside the result, never as a bare
// error.
func (r *Router) Route(ctx context.Context, requestText string) RoutingResult {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := r.tracer.Start(ctx, "orchestrator.route",
		trace.WithAttributes(attribute.Int("request.length", len(requestText))))
	defer span.End()

	state := &RouterState{Phase: PhaseIdle, RequestText: requestText}

	if strings.TrimSpace(requestText) == "" {
		state.Err = NewValidationError("request text is empty")
		state.Reasoning = "Request rejected: empty request text"
		state.transition(PhaseFailed)
		return r.finish(span, state, requestID, start)
	}

	state.transition(PhaseAnalyzing)
	snapshot := r.registry.List()

	_, scoreSpan := r.tracer.Start(ctx, "orchestrator.score",
		trace.WithAttributes(attribute.Int("registry.size", len(snapshot))))
	selected := r.analyze(state, snapshot)
	scoreSpan.End()

	if selected == nil {
		state.Err = NewNoMatchingAgentError("no agent matched the request")
		state.transition(PhaseFailed)
		return r.finish(span, state, requestID, start)
	}

	span.SetAttributes(
		attribute.String("agent.id", selected.ID),
		attribute.Float64("routing.confidence", state.Confidence))

	response, err := r.forward(ctx, selected.Endpoint, requestText)
	if err != nil {
		state.Err = AsError(err)
		state.transition(PhaseFailed)
		return r.finish(span, state, requestID, start)
	}

	state.Response = response
	state.transition(PhaseRouted)
	return r.finish(span, state, requestID, start)
}

// analyze scores every descriptor in the snapshot, records the full scoring
// pass into state, and selects the winner. Ties keep the first-registered
// agent: a later agent replaces the leader only with a strictly greater
// score. Returns nil when nothing matched and no usable fallback exists.
func (r *Router) analyze(state *RouterState, snapshot []CapabilityDescriptor) *CapabilityDescriptor {
	state.AgentScores = make(map[string]float64, len(snapshot))
	state.MatchedSkills = make(map[string][]string)

	var best *CapabilityDescriptor
	var bestScore float64
	var bestResult ScoreResult

	for i := range snapshot {
		descriptor := &snapshot[i]
		result := r.scoring.Score(state.RequestText, descriptor)
		state.AgentScores[descriptor.ID] = result.Raw
		if len(result.MatchedSkills) > 0 {
			state.MatchedSkills[descriptor.ID] = result.MatchedSkills
		}
		r.logger.Debug("agent scored",
			zap.String("agent_id", descriptor.ID),
			zap.Float64("score", result.Raw))

		if result.Raw > bestScore {
			best = descriptor
			bestScore = result.Raw
			bestResult = result
		}
	}

	if best == nil {
		fallback := r.fallback(snapshot)
		if fallback == nil {
			state.Reasoning = r.noMatchReasoning()
			return nil
		}
		best = fallback
		bestScore = 0
		bestResult = ScoreResult{}
		r.logger.Debug("falling back to default agent",
			zap.String("agent_id", best.ID))
	}

	state.SelectedID = best.ID
	state.SelectedName = best.DisplayName
	state.AgentSkills = best.SkillNames()
	state.Confidence = r.scoring.Confidence(bestScore)
	state.Reasoning = buildReasoning(best.DisplayName, bestResult.MatchedKeywords, bestResult.MatchedSkills)
	return best
}

// fallback returns the configured fallback agent's descriptor from the
// snapshot, or nil when none is configured or it is not registered.
func (r *Router) fallback(snapshot []CapabilityDescriptor) *CapabilityDescriptor {
	if r.config.FallbackAgentID == "" {
		return nil
	}
	for i := range snapshot {
		if snapshot[i].ID == r.config.FallbackAgentID {
			return &snapshot[i]
		}
	}
	r.logger.Warn("fallback agent is not registered",
		zap.String("agent_id", r.config.FallbackAgentID))
	return nil
}

func (r *Router) noMatchReasoning() string {
	if r.config.FallbackAgentID != "" {
		return fmt.Sprintf("No agent matched the request and fallback agent %q is not registered", r.config.FallbackAgentID)
	}
	return "No agent matched the request and no fallback agent is configured"
}

// forward hands the request to the forwarder inside its own span.
func (r *Router) forward(ctx context.Context, endpoint, requestText string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "orchestrator.forward",
		trace.WithAttributes(attribute.String("agent.endpoint", endpoint)))
	defer span.End()

	response, err := r.forwarder.Forward(ctx, endpoint, requestText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return response, err
}

// finish assembles the RoutingResult from the final state and logs the
// outcome. This is the only place results are built, so every result
// carries reasoning and scoring metadata regardless of outcome.
func (r *Router) finish(span trace.Span, state *RouterState, requestID string, start time.Time) RoutingResult {
	result := RoutingResult{
		Success:           state.Phase == PhaseRouted,
		RequestText:       state.RequestText,
		SelectedAgentID:   state.SelectedID,
		SelectedAgentName: state.SelectedName,
		AgentSkills:       state.AgentSkills,
		Confidence:        state.Confidence,
		Reasoning:         state.Reasoning,
		Response:          state.Response,
		Err:               state.Err,
		Metadata: &RoutingMetadata{
			RequestID:     requestID,
			AgentScores:   state.AgentScores,
			MatchedSkills: state.MatchedSkills,
		},
	}

	elapsed := time.Since(start)
	if result.Success {
		r.logger.Info("request routed",
			zap.String("request_id", requestID),
			zap.String("agent_id", result.SelectedAgentID),
			zap.Float64("confidence", result.Confidence),
			zap.Duration("duration", elapsed))
	} else {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, string(result.Err.Code))
		r.logger.Warn("routing failed",
			zap.String("request_id", requestID),
			zap.String("code", string(result.Err.Code)),
			zap.Duration("duration", elapsed),
			zap.Error(result.Err))
	}

	if r.observer != nil {
		r.observer(&result, elapsed)
	}
	return result
}

// buildReasoning renders the human-readable explanation of a selection.
func buildReasoning(name string, keywords, skills []string) string {
	parts := []string{fmt.Sprintf("Selected %s", name)}
	if len(keywords) > 0 {
		parts = append(parts, "based on keywords: "+strings.Join(keywords, ", "))
	}
	if len(skills) > 0 {
		if len(keywords) > 0 {
			parts = append(parts, "and skills: "+strings.Join(skills, ", "))
		} else {
			parts = append(parts, "based on skills: "+strings.Join(skills, ", "))
		}
	}
	if len(keywords) == 0 && len(skills) == 0 {
		parts = append(parts, "using default agent (no specific matches found)")
	}
	return strings.Join(parts, " ")
}
