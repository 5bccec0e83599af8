// Package mocks provides protocol doubles with error injection and call
// recording for registry, forwarder and handler tests.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/aichestra/aichestra/a2a"
)

// Client is a scriptable a2a.Client. Zero value is not usable; construct
// with NewClient. All methods are safe for concurrent use.
type Client struct {
	mu sync.Mutex

	descriptors map[string]*a2a.AgentDescriptor
	discoverErr error

	sendResult *a2a.SendResult
	sendErr    error

	tasks  []*a2a.Task
	getErr error

	discoverCalls int
	sendCalls     int
	getCalls      int
	cacheCleared  int
}

// NewClient creates an empty mock client. Discover fails for endpoints
// without a scripted descriptor.
func NewClient() *Client {
	return &Client{descriptors: make(map[string]*a2a.AgentDescriptor)}
}

// SetDescriptor scripts the descriptor Discover returns for endpoint.
func (c *Client) SetDescriptor(endpoint string, descriptor *a2a.AgentDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors[endpoint] = descriptor
}

// SetDiscoverErr makes every Discover call fail with err.
func (c *Client) SetDiscoverErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverErr = err
}

// SetSendResult scripts the SendMessage result.
func (c *Client) SetSendResult(result *a2a.SendResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendResult = result
	c.sendErr = nil
}

// SetSendErr makes every SendMessage call fail with err.
func (c *Client) SetSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// SetTasks scripts successive GetTask results; the last entry repeats.
func (c *Client) SetTasks(tasks ...*a2a.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks
	c.getErr = nil
}

// SetGetErr makes every GetTask call fail with err.
func (c *Client) SetGetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr = err
}

// DiscoverCalls returns the number of Discover calls handled.
func (c *Client) DiscoverCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discoverCalls
}

// SendCalls returns the number of SendMessage calls handled.
func (c *Client) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

// GetCalls returns the number of GetTask calls handled.
func (c *Client) GetCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls
}

// CacheClears returns how many times ClearCache was called.
func (c *Client) CacheClears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheCleared
}

// Discover returns the scripted descriptor for endpoint.
func (c *Client) Discover(ctx context.Context, endpoint string) (*a2a.AgentDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverCalls++

	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	descriptor, ok := c.descriptors[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: no descriptor scripted for %s", a2a.ErrUnreachable, endpoint)
	}
	copied := *descriptor
	return &copied, nil
}

// SendMessage returns the scripted send result.
func (c *Client) SendMessage(ctx context.Context, endpoint, text string) (*a2a.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++

	if c.sendErr != nil {
		return nil, c.sendErr
	}
	if c.sendResult == nil {
		return nil, a2a.ErrMalformedReply
	}
	return c.sendResult, nil
}

// GetTask returns the next scripted task.
func (c *Client) GetTask(ctx context.Context, endpoint, taskID string) (*a2a.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++

	if c.getErr != nil {
		return nil, c.getErr
	}
	if len(c.tasks) == 0 {
		return nil, fmt.Errorf("%w: no task scripted", a2a.ErrMalformedReply)
	}
	idx := c.getCalls - 1
	if idx >= len(c.tasks) {
		idx = len(c.tasks) - 1
	}
	task := c.tasks[idx]
	if task.ID == "" {
		copied := *task
		copied.ID = taskID
		return &copied, nil
	}
	return task, nil
}

// ClearCache records the call; the registry invokes it before a refresh.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheCleared++
}

var _ a2a.Client = (*Client)(nil)
