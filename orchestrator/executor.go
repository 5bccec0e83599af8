package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aichestra/aichestra/a2a"
)

// ListAgentsRequest is the magic request text that returns the agent
// inventory instead of being routed.
const ListAgentsRequest = "LIST_AGENTS"

// RouterExecutor exposes the router on the agent protocol, so the router
// can itself be addressed as an agent. Routed outcomes are rendered as a
// text block; routing failures become explanatory text rather than protocol
// errors, keeping the surface usable by plain-text clients.
type RouterExecutor struct {
	router   *Router
	registry *Registry
	logger   *zap.Logger
}

// NewRouterExecutor wires the router and registry behind the protocol
// executor. A nil logger defaults to a no-op logger.
func NewRouterExecutor(router *Router, registry *Registry, logger *zap.Logger) *RouterExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterExecutor{
		router:   router,
		registry: registry,
		logger:   logger.With(zap.String("component", "router_executor")),
	}
}

// Execute handles one incoming protocol request.
func (e *RouterExecutor) Execute(ctx context.Context, requestText string) (string, error) {
	if strings.TrimSpace(requestText) == ListAgentsRequest {
		e.logger.Info("listing registered agents")
		return e.listAgents()
	}

	result := e.router.Route(ctx, requestText)
	if !result.Success {
		return fmt.Sprintf("Error: %s", result.Err.Error()), nil
	}
	return fmt.Sprintf("Routed to %s\nConfidence: %.2f\nReasoning: %s\n\nResponse: %s",
		result.SelectedAgentName, result.Confidence, result.Reasoning, result.Response), nil
}

// listAgents renders the inventory as indented JSON for text clients.
func (e *RouterExecutor) listAgents() (string, error) {
	snapshot := e.registry.List()
	agents := make([]AgentSummary, 0, len(snapshot))
	for _, descriptor := range snapshot {
		agents = append(agents, Summarize(descriptor))
	}

	payload := struct {
		Type       string         `json:"type"`
		Agents     []AgentSummary `json:"agents"`
		TotalCount int            `json:"total_count"`
	}{
		Type:       "agent_list",
		Agents:     agents,
		TotalCount: len(agents),
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", NewError(CodeInternal, "failed to encode agent list").WithCause(err)
	}
	return string(raw), nil
}

// Ensure RouterExecutor implements the protocol executor.
var _ a2a.Executor = (*RouterExecutor)(nil)
