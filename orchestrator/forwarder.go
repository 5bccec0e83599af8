package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aichestra/aichestra/a2a"
)

// ForwardConfig bounds the forwarding state machine.
type ForwardConfig struct {
	// PollInterval is the fixed delay between task status polls.
	PollInterval time.Duration
	// MaxAttempts is the polling budget after submission.
	MaxAttempts int
}

// DefaultForwardConfig returns the standard polling bounds: one poll per
// second for up to thirty attempts.
func DefaultForwardConfig() *ForwardConfig {
	return &ForwardConfig{
		PollInterval: 1 * time.Second,
		MaxAttempts:  30,
	}
}

// ForwardObserver is notified once per Forward call with an outcome label
// and the number of status polls used. Labels are the terminal task states
// verbatim, plus "message" for direct replies, "timeout" for an exhausted
// poll budget, "error" for submission failures and "aborted" when the
// caller's context ends the wait. The serving layer uses the hook to record
// metrics without coupling this package to a metrics backend.
type ForwardObserver func(outcome string, polls int)

// Forwarder submits request text to a selected agent and drives the remote
// task to an outcome. A Forwarder holds no per-request state; every call is
// independent and bounded by the polling budget, so a slow agent delays
// only its own request.
type Forwarder struct {
	client   a2a.Client
	config   *ForwardConfig
	logger   *zap.Logger
	observer ForwardObserver
}

// NewForwarder creates a Forwarder over the given protocol client. A nil
// config uses DefaultForwardConfig; non-positive config values fall back to
// their defaults. A nil logger defaults to a no-op logger.
func NewForwarder(client a2a.Client, config *ForwardConfig, logger *zap.Logger) *Forwarder {
	if config == nil {
		config = DefaultForwardConfig()
	}
	defaults := DefaultForwardConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "forwarder")),
	}
}

// SetObserver registers the forward observer. Call before serving traffic;
// the field is not synchronized.
func (f *Forwarder) SetObserver(observer ForwardObserver) {
	f.observer = observer
}

func (f *Forwarder) observe(outcome string, polls int) {
	if f.observer != nil {
		f.observer(outcome, polls)
	}
}

// Forward submits requestText to the agent at endpoint and returns the
// agent's response text. An agent replying with a direct message or an
// already-terminal task is resolved without a single poll; otherwise the
// task is polled at the fixed interval until it reaches a terminal state,
// the polling budget runs out, or ctx is done.
func (f *Forwarder) Forward(ctx context.Context, endpoint, requestText string) (string, error) {
	f.logger.Debug("forwarding request",
		zap.String("endpoint", endpoint),
		zap.Int("request_len", len(requestText)))

	sent, err := f.client.SendMessage(ctx, endpoint, requestText)
	if err != nil {
		f.observe("error", 0)
		return "", NewNetworkError(
			fmt.Sprintf("failed to submit request to %s", endpoint), err)
	}

	if sent.Message != nil {
		f.observe("message", 0)
		if text, ok := sent.Message.Text(); ok {
			f.logger.Debug("agent answered with direct message")
			return text, nil
		}
		return "Message received but no text content", nil
	}

	task := sent.Task
	if task.Status.State.IsTerminal() {
		f.logger.Debug("task terminal on submission",
			zap.String("task_id", task.ID),
			zap.String("state", string(task.Status.State)))
		return f.resolveTerminal(task, 0)
	}

	return f.poll(ctx, endpoint, task.ID)
}

// poll drives a non-terminal task to an outcome. Each attempt waits the
// poll interval first, so a task that needs time is given it before the
// first status call. Transport failures during polling consume attempts
// but do not abort the loop.
func (f *Forwarder) poll(ctx context.Context, endpoint, taskID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			f.observe("aborted", attempt-1)
			return "", ctx.Err()
		case <-time.After(f.config.PollInterval):
		}

		task, err := f.client.GetTask(ctx, endpoint, taskID)
		if err != nil {
			lastErr = err
			f.logger.Warn("task poll failed",
				zap.String("task_id", taskID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if task.Status.State.IsTerminal() {
			f.logger.Debug("task reached terminal state",
				zap.String("task_id", taskID),
				zap.String("state", string(task.Status.State)),
				zap.Int("attempts", attempt))
			return f.resolveTerminal(task, attempt)
		}
	}

	f.observe("timeout", f.config.MaxAttempts)
	timeoutErr := NewTimeoutError(fmt.Sprintf(
		"task %s did not complete within %d attempts", taskID, f.config.MaxAttempts))
	if lastErr != nil {
		timeoutErr = timeoutErr.WithCause(lastErr)
	}
	return "", timeoutErr
}

// resolveTerminal turns a terminal task into the forwarding outcome.
func (f *Forwarder) resolveTerminal(task *a2a.Task, polls int) (string, error) {
	f.observe(string(task.Status.State), polls)
	switch task.Status.State {
	case a2a.TaskStateCompleted:
		if text, ok := task.ResponseText(); ok {
			return text, nil
		}
		return "Task completed but no response text found", nil
	case a2a.TaskStateInputRequired:
		// The agent is asking a follow-up question. That question is the
		// response; it must never park the request waiting for input.
		if text, ok := task.StatusMessageText(); ok {
			return text, nil
		}
		return "Agent requires input but no message provided", nil
	case a2a.TaskStateFailed:
		if reason, ok := task.StatusMessageText(); ok {
			return "", NewRemoteTaskFailedError(reason)
		}
		return "", NewRemoteTaskFailedError("agent task failed without a reason")
	case a2a.TaskStateCanceled:
		return "", NewRemoteTaskCanceledError(fmt.Sprintf("task %s was canceled by the agent", task.ID))
	default:
		return "", NewError(CodeInternal, fmt.Sprintf("unexpected terminal state %q", task.Status.State))
	}
}
