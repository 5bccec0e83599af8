package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor turns request text into response text. The serving surface calls
// it once per message/send and wraps the result into a completed task.
type Executor interface {
	Execute(ctx context.Context, requestText string) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, requestText string) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, requestText string) (string, error) {
	return f(ctx, requestText)
}

// defaultMaxStoredTasks bounds how many finished tasks stay available for
// tasks/get replay before the oldest are evicted.
const defaultMaxStoredTasks = 1000

// Handler serves the agent protocol for a single local agent: the descriptor
// document at DescriptorPath and the JSON-RPC surface at the base path.
type Handler struct {
	descriptor AgentDescriptor
	executor   Executor
	logger     *zap.Logger
	maxTasks   int

	mu        sync.RWMutex
	tasks     map[string]*Task
	taskOrder []string
}

// NewHandler creates a Handler exposing descriptor and dispatching requests
// to executor. A nil logger defaults to a no-op logger.
func NewHandler(descriptor AgentDescriptor, executor Executor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		descriptor: descriptor,
		executor:   executor,
		logger:     logger.With(zap.String("component", "a2a_server")),
		maxTasks:   defaultMaxStoredTasks,
		tasks:      make(map[string]*Task),
	}
}

// Descriptor returns the descriptor document this handler serves.
func (h *Handler) Descriptor() AgentDescriptor {
	return h.descriptor
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == DescriptorPath:
		h.writeJSON(w, http.StatusOK, h.descriptor)
	case r.Method == http.MethodPost:
		h.handleRPC(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeRPCError(w, "", CodeParseError, "parse error")
		return
	}

	switch req.Method {
	case MethodMessageSend:
		h.handleMessageSend(r.Context(), w, &req)
	case MethodTasksGet:
		h.handleTasksGet(w, &req)
	default:
		h.writeRPCError(w, req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *Handler) handleMessageSend(ctx context.Context, w http.ResponseWriter, req *Request) {
	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.writeRPCError(w, req.ID, CodeInvalidParams, "invalid message/send params")
		return
	}

	text, ok := messageText(params.Message)
	if !ok {
		h.writeRPCError(w, req.ID, CodeInvalidParams, "message has no text part")
		return
	}

	taskID := params.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	h.logger.Debug("executing task",
		zap.String("task_id", taskID),
		zap.Int("request_len", len(text)))

	responseText, err := h.executor.Execute(ctx, text)
	if err != nil {
		h.logger.Error("task execution failed",
			zap.String("task_id", taskID),
			zap.Error(err))
		h.writeRPCError(w, req.ID, CodeInternalError, err.Error())
		return
	}

	task := &Task{
		ID:        taskID,
		ContextID: params.Message.ContextID,
		Status:    TaskStatus{State: TaskStateCompleted},
		Artifacts: []Artifact{{
			ArtifactID: uuid.NewString(),
			Parts:      []Part{ArtifactPart(responseText)},
		}},
	}
	h.storeTask(task)

	h.writeResult(w, req.ID, task)
}

func (h *Handler) handleTasksGet(w http.ResponseWriter, req *Request) {
	var params TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		h.writeRPCError(w, req.ID, CodeInvalidParams, "invalid tasks/get params")
		return
	}

	h.mu.RLock()
	task, ok := h.tasks[params.ID]
	h.mu.RUnlock()
	if !ok {
		h.writeRPCError(w, req.ID, CodeTaskNotFound, "task not found: "+params.ID)
		return
	}

	h.writeResult(w, req.ID, task)
}

// storeTask keeps the task for tasks/get replay, evicting the oldest stored
// task once the cap is reached.
func (h *Handler) storeTask(task *Task) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.tasks[task.ID]; !exists {
		h.taskOrder = append(h.taskOrder, task.ID)
	}
	h.tasks[task.ID] = task

	for len(h.taskOrder) > h.maxTasks {
		oldest := h.taskOrder[0]
		h.taskOrder = h.taskOrder[1:]
		delete(h.tasks, oldest)
	}
}

// messageText extracts the first text part of an incoming message. Senders
// mark text parts with "type" but some emit "kind"; accept both.
func messageText(msg Message) (string, bool) {
	for _, p := range msg.Parts {
		if p.Type == "text" || p.Kind == "text" {
			return p.Text, true
		}
	}
	return "", false
}

func (h *Handler) writeResult(w http.ResponseWriter, id string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		h.writeRPCError(w, id, CodeInternalError, "failed to encode result")
		return
	}
	h.writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func (h *Handler) writeRPCError(w http.ResponseWriter, id string, code int, message string) {
	h.writeJSON(w, http.StatusOK, Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// Ensure Handler implements http.Handler.
var _ http.Handler = (*Handler)(nil)
