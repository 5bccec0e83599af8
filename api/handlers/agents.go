package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aichestra/aichestra/orchestrator"
)

// AgentsHandler serves the agent management endpoints over the registry.
type AgentsHandler struct {
	registry *orchestrator.Registry
	logger   *zap.Logger
}

// NewAgentsHandler creates the management handler. A nil logger defaults
// to a no-op logger.
func NewAgentsHandler(registry *orchestrator.Registry, logger *zap.Logger) *AgentsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentsHandler{
		registry: registry,
		logger:   logger.With(zap.String("component", "agents_handler")),
	}
}

// RegisterRequest asks the router to discover and register the agent
// serving the given endpoint.
type RegisterRequest struct {
	Endpoint string `json:"endpoint"`
}

// RegisterResponse reports a completed registration.
type RegisterResponse struct {
	Message string                    `json:"message"`
	Agent   orchestrator.AgentSummary `json:"agent"`
}

// UnregisterRequest names the agent to remove. The identifier may be the
// agent ID, its endpoint, its display name, or an endpoint fragment.
type UnregisterRequest struct {
	Identifier string `json:"identifier"`
}

// UnregisterResponse reports the unregistration outcome. Removed is false
// when the identifier matched nothing; that is not an error.
type UnregisterResponse struct {
	Message string `json:"message"`
	Removed bool   `json:"removed"`
}

// ListResponse is the registered agent inventory.
type ListResponse struct {
	Agents     []orchestrator.AgentSummary `json:"agents"`
	TotalCount int                         `json:"total_count"`
}

// RefreshResponse reports a registry-wide descriptor refresh.
type RefreshResponse struct {
	Refreshed []string          `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
	Total     int               `json:"total"`
}

// HandleRegister discovers the agent at the posted endpoint and registers
// it. POST /api/v1/agents/register.
func (h *AgentsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		WriteError(r.Context(), w, h.logger,
			orchestrator.NewValidationError("endpoint is required"))
		return
	}

	descriptor, err := h.registry.RegisterEndpoint(r.Context(), endpoint)
	if err != nil {
		WriteError(r.Context(), w, h.logger, err)
		return
	}

	h.logger.Info("agent registered via API",
		zap.String("agent_id", descriptor.ID),
		zap.String("endpoint", endpoint))

	WriteSuccess(r.Context(), w, RegisterResponse{
		Message: fmt.Sprintf("Successfully registered %s from %s", descriptor.DisplayName, endpoint),
		Agent:   orchestrator.Summarize(descriptor),
	})
}

// HandleUnregister removes the agent matching the posted identifier. An
// identifier that matches nothing succeeds as a no-op so removal is
// idempotent. POST /api/v1/agents/unregister.
func (h *AgentsHandler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		WriteError(r.Context(), w, h.logger,
			orchestrator.NewValidationError("identifier is required"))
		return
	}

	descriptor, found := h.registry.Resolve(identifier)
	if !found {
		WriteSuccess(r.Context(), w, UnregisterResponse{
			Message: fmt.Sprintf("Agent %s was not registered", identifier),
			Removed: false,
		})
		return
	}

	h.registry.Unregister(descriptor.ID)
	h.logger.Info("agent unregistered via API",
		zap.String("agent_id", descriptor.ID),
		zap.String("identifier", identifier))

	WriteSuccess(r.Context(), w, UnregisterResponse{
		Message: fmt.Sprintf("Successfully unregistered %s", descriptor.DisplayName),
		Removed: true,
	})
}

// HandleList returns the registered agents in registration order.
// GET /api/v1/agents.
func (h *AgentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.List()
	agents := make([]orchestrator.AgentSummary, 0, len(snapshot))
	for _, descriptor := range snapshot {
		agents = append(agents, orchestrator.Summarize(descriptor))
	}

	WriteSuccess(r.Context(), w, ListResponse{
		Agents:     agents,
		TotalCount: len(agents),
	})
}

// HandleRefresh re-discovers every registered agent and reports the result
// per agent. POST /api/v1/agents/refresh.
func (h *AgentsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	results := h.registry.RefreshAll(r.Context())

	resp := RefreshResponse{
		Refreshed: make([]string, 0, len(results)),
		Total:     len(results),
	}
	for id, err := range results {
		if err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[id] = err.Error()
			continue
		}
		resp.Refreshed = append(resp.Refreshed, id)
	}
	sort.Strings(resp.Refreshed)

	h.logger.Info("registry refreshed via API",
		zap.Int("total", resp.Total),
		zap.Int("failed", len(resp.Failed)))

	WriteSuccess(r.Context(), w, resp)
}
