package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/aichestra/aichestra/a2a"
)

// StubAgent is an in-process agent serving the discovery document and the
// JSON-RPC surface with a scripted outcome. Configure it with one of the
// scenario methods before sending traffic; it counts message/send and
// tasks/get calls so tests can assert on polling behavior.
type StubAgent struct {
	mu         sync.Mutex
	descriptor a2a.AgentDescriptor
	reply      *a2a.Message
	submitTask *a2a.Task
	pollTasks  []a2a.Task
	sendCalls  int
	pollCalls  int
	server     *httptest.Server
}

// NewStubAgent starts a stub agent named name with the given skills. The
// default script completes every task on submission with an empty answer;
// call a scenario method to change it. Close releases the server.
func NewStubAgent(name string, skills ...a2a.AgentSkill) *StubAgent {
	s := &StubAgent{
		descriptor: a2a.AgentDescriptor{
			Name:        name,
			Description: "stub agent for tests",
			Version:     "0.0.1",
			Skills:      skills,
		},
	}
	s.CompleteWith("")
	s.server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	s.descriptor.URL = s.server.URL
	return s
}

// URL returns the stub's base endpoint.
func (s *StubAgent) URL() string { return s.server.URL }

// Close shuts the underlying server down.
func (s *StubAgent) Close() { s.server.Close() }

// SendCalls returns how many message/send calls were handled.
func (s *StubAgent) SendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCalls
}

// PollCalls returns how many tasks/get calls were handled.
func (s *StubAgent) PollCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls
}

// CompleteWith scripts a task that is already completed on submission,
// answering with text as its artifact.
func (s *StubAgent) CompleteWith(text string) {
	s.setScript(nil, taskWithArtifact(a2a.TaskStateCompleted, text), nil)
}

// CompleteAfter scripts a task that needs polls status polls before it
// completes with text. Earlier polls report the working state.
func (s *StubAgent) CompleteAfter(polls int, text string) {
	script := make([]a2a.Task, 0, polls)
	for i := 0; i < polls-1; i++ {
		script = append(script, bareTask(a2a.TaskStateWorking))
	}
	script = append(script, *taskWithArtifact(a2a.TaskStateCompleted, text))
	submitted := bareTask(a2a.TaskStateSubmitted)
	s.setScript(nil, &submitted, script)
}

// RequireInput scripts a task that immediately asks the caller a question.
func (s *StubAgent) RequireInput(question string) {
	task := bareTask(a2a.TaskStateInputRequired)
	task.Status.Message = &a2a.Message{
		Role:  "agent",
		Parts: []a2a.Part{a2a.ArtifactPart(question)},
	}
	s.setScript(nil, &task, nil)
}

// FailWith scripts a task that immediately fails with the given reason.
func (s *StubAgent) FailWith(reason string) {
	task := bareTask(a2a.TaskStateFailed)
	if reason != "" {
		task.Status.Message = &a2a.Message{
			Role:  "agent",
			Parts: []a2a.Part{a2a.ArtifactPart(reason)},
		}
	}
	s.setScript(nil, &task, nil)
}

// CancelTask scripts a task that is canceled on submission.
func (s *StubAgent) CancelTask() {
	task := bareTask(a2a.TaskStateCanceled)
	s.setScript(nil, &task, nil)
}

// NeverFinish scripts a task that reports the working state forever.
func (s *StubAgent) NeverFinish() {
	submitted := bareTask(a2a.TaskStateSubmitted)
	s.setScript(nil, &submitted, []a2a.Task{bareTask(a2a.TaskStateWorking)})
}

// ReplyWithMessage scripts a direct message reply instead of a task.
func (s *StubAgent) ReplyWithMessage(text string) {
	s.setScript(&a2a.Message{
		Role:  "agent",
		Parts: []a2a.Part{a2a.TextPart(text)},
	}, nil, nil)
}

func (s *StubAgent) setScript(reply *a2a.Message, submit *a2a.Task, polls []a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = reply
	s.submitTask = submit
	s.pollTasks = polls
	s.sendCalls = 0
	s.pollCalls = 0
}

func (s *StubAgent) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == a2a.DescriptorPath {
		writeBody(w, s.descriptor)
		return
	}
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBody(w, a2a.Response{JSONRPC: "2.0", Error: &a2a.RPCError{Code: a2a.CodeParseError, Message: "parse error"}})
		return
	}

	switch req.Method {
	case a2a.MethodMessageSend:
		s.handleSend(w, &req)
	case a2a.MethodTasksGet:
		s.handleGet(w, &req)
	default:
		writeBody(w, a2a.Response{JSONRPC: "2.0", ID: req.ID, Error: &a2a.RPCError{Code: a2a.CodeMethodNotFound, Message: "method not found"}})
	}
}

func (s *StubAgent) handleSend(w http.ResponseWriter, req *a2a.Request) {
	var params a2a.MessageSendParams
	_ = json.Unmarshal(req.Params, &params)

	s.mu.Lock()
	s.sendCalls++
	reply := s.reply
	var task *a2a.Task
	if s.submitTask != nil {
		copied := *s.submitTask
		copied.ID = params.ID
		task = &copied
	}
	s.mu.Unlock()

	if reply != nil {
		writeResult(w, req.ID, reply)
		return
	}
	writeResult(w, req.ID, task)
}

func (s *StubAgent) handleGet(w http.ResponseWriter, req *a2a.Request) {
	var params a2a.TaskQueryParams
	_ = json.Unmarshal(req.Params, &params)

	s.mu.Lock()
	s.pollCalls++
	if len(s.pollTasks) == 0 {
		s.mu.Unlock()
		writeBody(w, a2a.Response{JSONRPC: "2.0", ID: req.ID, Error: &a2a.RPCError{Code: a2a.CodeTaskNotFound, Message: "task not found"}})
		return
	}
	idx := s.pollCalls - 1
	if idx >= len(s.pollTasks) {
		idx = len(s.pollTasks) - 1
	}
	task := s.pollTasks[idx]
	task.ID = params.ID
	s.mu.Unlock()

	writeResult(w, req.ID, &task)
}

func writeResult(w http.ResponseWriter, id string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeBody(w, a2a.Response{JSONRPC: "2.0", ID: id, Error: &a2a.RPCError{Code: a2a.CodeInternalError, Message: err.Error()}})
		return
	}
	writeBody(w, a2a.Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeBody(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func bareTask(state a2a.TaskState) a2a.Task {
	return a2a.Task{Status: a2a.TaskStatus{State: state}}
}

func taskWithArtifact(state a2a.TaskState, text string) *a2a.Task {
	task := bareTask(state)
	task.Artifacts = []a2a.Artifact{{
		ArtifactID: "artifact-1",
		Parts:      []a2a.Part{a2a.ArtifactPart(text)},
	}}
	return &task
}
