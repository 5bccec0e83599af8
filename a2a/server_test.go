package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() AgentDescriptor {
	return AgentDescriptor{
		Name:        "Test Orchestrator",
		Description: "Routes requests",
		URL:         "http://localhost:8000",
		Version:     "1.0.0",
		Skills: []AgentSkill{
			{Name: "request_routing", Tags: []string{"routing"}},
		},
	}
}

func echoExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, requestText string) (string, error) {
		return "echo: " + requestText, nil
	})
}

func postRPC(t *testing.T, handler *Handler, body string) Response {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func sendMessage(t *testing.T, handler *Handler, taskID, text string) Response {
	t.Helper()
	params := MessageSendParams{
		ID:            taskID,
		Message:       NewUserMessage(text),
		Configuration: SendConfiguration{AcceptedOutputModes: []string{"text"}},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return postRPC(t, handler, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":"req-1","method":"message/send","params":%s}`, raw))
}

func TestServeDescriptor(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, DescriptorPath, nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc AgentDescriptor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "Test Orchestrator", doc.Name)
	assert.Equal(t, "http://localhost:8000", doc.URL)
	require.Len(t, doc.Skills, 1)
	assert.Equal(t, "request_routing", doc.Skills[0].Name)
}

func TestServeUnknownPath(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageSend(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := sendMessage(t, handler, "task-1", "calculate 2+3")

	require.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.ID)

	var task Task
	require.NoError(t, json.Unmarshal(resp.Result, &task))
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)

	text, ok := task.ResponseText()
	require.True(t, ok)
	assert.Equal(t, "echo: calculate 2+3", text)
}

func TestMessageSendGeneratesTaskID(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := sendMessage(t, handler, "", "hello")

	require.Nil(t, resp.Error)
	var task Task
	require.NoError(t, json.Unmarshal(resp.Result, &task))
	assert.NotEmpty(t, task.ID)
}

func TestMessageSendKeepsContextID(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	msg := NewUserMessage("hello")
	params := MessageSendParams{ID: "task-1", Message: msg}
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	resp := postRPC(t, handler, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":"req-1","method":"message/send","params":%s}`, raw))

	var task Task
	require.NoError(t, json.Unmarshal(resp.Result, &task))
	assert.Equal(t, msg.ContextID, task.ContextID)
}

func TestMessageSendAcceptsKindTextParts(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	// Some senders mark text parts with "kind" instead of "type".
	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"message/send",`+
			`"params":{"id":"task-1","message":{"role":"user","parts":[{"kind":"text","text":"hi"}]}}}`)

	require.Nil(t, resp.Error)
}

func TestMessageSendWithoutTextPart(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"message/send",`+
			`"params":{"id":"task-1","message":{"role":"user","parts":[]}}}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestMessageSendInvalidParams(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"message/send","params":[1,2]}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestMessageSendExecutorFailure(t *testing.T) {
	failing := ExecutorFunc(func(ctx context.Context, requestText string) (string, error) {
		return "", errors.New("routing pipeline exploded")
	})
	handler := NewHandler(testDescriptor(), failing, nil)

	resp := sendMessage(t, handler, "task-1", "hello")

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "routing pipeline exploded", resp.Error.Message)
}

func TestParseError(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler, `{"jsonrpc":"2.0","id"`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"message/stream","params":{}}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "message/stream")
}

func TestTasksGet(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)
	sendMessage(t, handler, "task-1", "calculate 2+3")

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-2","method":"tasks/get","params":{"id":"task-1"}}`)

	require.Nil(t, resp.Error)
	var task Task
	require.NoError(t, json.Unmarshal(resp.Result, &task))
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
}

func TestTasksGetUnknownTask(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"tasks/get","params":{"id":"ghost"}}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTaskNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ghost")
}

func TestTasksGetInvalidParams(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)

	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-1","method":"tasks/get","params":{"id":""}}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestTaskEviction(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)
	handler.maxTasks = 2

	sendMessage(t, handler, "task-1", "first")
	sendMessage(t, handler, "task-2", "second")
	sendMessage(t, handler, "task-3", "third")

	// The oldest task is gone, the newer two replay.
	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-9","method":"tasks/get","params":{"id":"task-1"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTaskNotFound, resp.Error.Code)

	for _, id := range []string{"task-2", "task-3"} {
		resp := postRPC(t, handler, fmt.Sprintf(
			`{"jsonrpc":"2.0","id":"req-9","method":"tasks/get","params":{"id":%q}}`, id))
		assert.Nil(t, resp.Error, "task %s should still be stored", id)
	}
}

func TestResendingTaskIDDoesNotDuplicate(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)
	handler.maxTasks = 2

	sendMessage(t, handler, "task-1", "first")
	sendMessage(t, handler, "task-1", "updated")
	sendMessage(t, handler, "task-2", "second")

	// Re-sending under the same ID replaced the stored task instead of
	// consuming a second slot, so both tasks are still replayable.
	resp := postRPC(t, handler,
		`{"jsonrpc":"2.0","id":"req-9","method":"tasks/get","params":{"id":"task-1"}}`)
	require.Nil(t, resp.Error)

	var task Task
	require.NoError(t, json.Unmarshal(resp.Result, &task))
	text, ok := task.ResponseText()
	require.True(t, ok)
	assert.Equal(t, "echo: updated", text)
}

func TestDescriptorAccessor(t *testing.T) {
	handler := NewHandler(testDescriptor(), echoExecutor(), nil)
	assert.Equal(t, "Test Orchestrator", handler.Descriptor().Name)
}
