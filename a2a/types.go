package a2a

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DescriptorPath is the well-known HTTP path where an agent publishes its
// descriptor document.
const DescriptorPath = "/.well-known/agent-descriptor"

// JSON-RPC method names understood by agents.
const (
	MethodMessageSend = "message/send"
	MethodTasksGet    = "tasks/get"
)

// JSON-RPC 2.0 error codes used on the serving surface. CodeTaskNotFound is
// the protocol extension code for tasks/get on an unknown task.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeTaskNotFound   = -32001
)

// TaskState is the lifecycle state of a remote task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
)

// IsTerminal reports whether the state ends a task's lifecycle. Polling a
// task in a terminal state will never observe another transition.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateInputRequired:
		return true
	}
	return false
}

// Part is one chunk of message or artifact content. Outgoing message parts
// carry the "type" field while artifact and status-message parts carry
// "kind"; both are kept so a Part round-trips either form unchanged.
type Part struct {
	Kind string `json:"kind,omitempty"`
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// TextPart builds an outgoing text part for a message submission.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// ArtifactPart builds a text part the way agents emit them inside artifacts.
func ArtifactPart(text string) Part {
	return Part{Kind: "text", Text: text}
}

// Message is a single protocol message exchanged with an agent.
type Message struct {
	Role      string `json:"role"`
	MessageID string `json:"messageId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
	Parts     []Part `json:"parts"`
}

// Text returns the first text part of a direct message reply, matched on the
// "type" field as agents emit it for inline message results.
func (m *Message) Text() (string, bool) {
	if m == nil {
		return "", false
	}
	for _, p := range m.Parts {
		if p.Type == "text" {
			return p.Text, true
		}
	}
	return "", false
}

// NewUserMessage builds an outgoing user message with fresh message and
// context identifiers.
func NewUserMessage(text string) Message {
	return Message{
		Role:      "user",
		MessageID: uuid.NewString(),
		ContextID: uuid.NewString(),
		Parts:     []Part{TextPart(text)},
	}
}

// Artifact is a unit of task output.
type Artifact struct {
	ArtifactID string `json:"artifactId,omitempty"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// TaskStatus captures the current state of a task, optionally with an agent
// message (used by the input-required state to tell the caller what is
// missing).
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Task is the remote task handle returned by message/send and tasks/get.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ResponseText returns the first text part across the task's artifacts.
// Artifact parts are matched on the "kind" field.
func (t *Task) ResponseText() (string, bool) {
	if t == nil {
		return "", false
	}
	for _, a := range t.Artifacts {
		for _, p := range a.Parts {
			if p.Kind == "text" {
				return p.Text, true
			}
		}
	}
	return "", false
}

// StatusMessageText returns the first text part of the status message, used
// when a task stops in the input-required state.
func (t *Task) StatusMessageText() (string, bool) {
	if t == nil || t.Status.Message == nil {
		return "", false
	}
	for _, p := range t.Status.Message.Parts {
		if p.Kind == "text" {
			return p.Text, true
		}
	}
	return "", false
}

// SendConfiguration narrows what output the caller accepts.
type SendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes"`
}

// MessageSendParams are the params of a message/send call. ID names the task
// the caller wants the agent to create for this message.
type MessageSendParams struct {
	ID            string            `json:"id"`
	Message       Message           `json:"message"`
	Configuration SendConfiguration `json:"configuration"`
}

// TaskQueryParams are the params of a tasks/get call.
type TaskQueryParams struct {
	ID string `json:"id"`
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// AgentSkill is one advertised skill inside an agent descriptor document.
type AgentSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentDescriptor is the document an agent publishes at DescriptorPath.
type AgentDescriptor struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url"`
	Version     string       `json:"version,omitempty"`
	Skills      []AgentSkill `json:"skills,omitempty"`
}

// Validate checks the fields discovery cannot proceed without.
func (d *AgentDescriptor) Validate() error {
	if d.Name == "" {
		return ErrMissingName
	}
	if d.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// SendResult holds the outcome of a message/send call. Agents reply either
// with a Task handle to poll or with a direct Message carrying the answer
// inline; exactly one of the fields is set.
type SendResult struct {
	Task    *Task
	Message *Message
}
