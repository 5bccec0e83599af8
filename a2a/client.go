package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client defines the transport operations the router needs against a
// downstream agent.
type Client interface {
	// Discover retrieves the agent descriptor published at DescriptorPath.
	Discover(ctx context.Context, endpoint string) (*AgentDescriptor, error)
	// SendMessage submits a user message via message/send and returns either
	// the task handle to poll or the agent's direct reply.
	SendMessage(ctx context.Context, endpoint, text string) (*SendResult, error)
	// GetTask fetches the current state of a task via tasks/get.
	GetTask(ctx context.Context, endpoint, taskID string) (*Task, error)
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	// Timeout bounds a single message/send or tasks/get call.
	Timeout time.Duration
	// DiscoveryTimeout bounds a single descriptor fetch.
	DiscoveryTimeout time.Duration
	// RetryCount is the number of retries for failed descriptor fetches.
	RetryCount int
	// RetryDelay is the delay between descriptor fetch retries.
	RetryDelay time.Duration
	// DescriptorTTL is how long a discovered descriptor stays cached.
	DescriptorTTL time.Duration
	// Headers are additional headers to include in every request.
	Headers map[string]string
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:          30 * time.Second,
		DiscoveryTimeout: 5 * time.Second,
		RetryCount:       3,
		RetryDelay:       1 * time.Second,
		DescriptorTTL:    5 * time.Minute,
		Headers:          make(map[string]string),
	}
}

// HTTPClient is the default implementation of Client.
type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
	// descriptorCache caches discovered descriptors per endpoint
	descriptorCache map[string]*cachedDescriptor
	cacheMu         sync.RWMutex
}

type cachedDescriptor struct {
	descriptor *AgentDescriptor
	expiresAt  time.Time
}

// NewHTTPClient creates a new HTTPClient with the given configuration.
func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &HTTPClient{
		config:          config,
		httpClient:      &http.Client{},
		descriptorCache: make(map[string]*cachedDescriptor),
	}
}

// Discover retrieves the agent descriptor from the given base endpoint.
// Fresh results are cached for the configured TTL.
func (c *HTTPClient) Discover(ctx context.Context, endpoint string) (*AgentDescriptor, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	c.cacheMu.RLock()
	if cached, ok := c.descriptorCache[endpoint]; ok && time.Now().Before(cached.expiresAt) {
		c.cacheMu.RUnlock()
		return cached.descriptor, nil
	}
	c.cacheMu.RUnlock()

	var body []byte
	var lastErr error
	for i := 0; i <= c.config.RetryCount; i++ {
		body, lastErr = c.fetchDescriptor(ctx, endpoint)
		if lastErr == nil {
			break
		}
		if i < c.config.RetryCount {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	var descriptor AgentDescriptor
	if err := json.Unmarshal(body, &descriptor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if descriptor.URL == "" {
		descriptor.URL = endpoint
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.descriptorCache[endpoint] = &cachedDescriptor{
		descriptor: &descriptor,
		expiresAt:  time.Now().Add(c.config.DescriptorTTL),
	}
	c.cacheMu.Unlock()

	return &descriptor, nil
}

func (c *HTTPClient) fetchDescriptor(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.DiscoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+DescriptorPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// SendMessage submits text to the agent at endpoint via message/send.
func (c *HTTPClient) SendMessage(ctx context.Context, endpoint, text string) (*SendResult, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	params := MessageSendParams{
		ID:            uuid.NewString(),
		Message:       NewUserMessage(text),
		Configuration: SendConfiguration{AcceptedOutputModes: []string{"text"}},
	}
	result, err := c.call(ctx, endpoint, MethodMessageSend, params)
	if err != nil {
		return nil, err
	}

	// Agents answer message/send with either a task handle or a direct
	// message; a task handle carries both an id and a status.
	var probe struct {
		ID     string          `json:"id"`
		Status json.RawMessage `json:"status"`
		Parts  json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	switch {
	case probe.ID != "" && len(probe.Status) > 0:
		var task Task
		if err := json.Unmarshal(result, &task); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		return &SendResult{Task: &task}, nil
	case len(probe.Parts) > 0:
		var msg Message
		if err := json.Unmarshal(result, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		return &SendResult{Message: &msg}, nil
	default:
		return nil, fmt.Errorf("%w: neither task nor message", ErrMalformedReply)
	}
}

// GetTask fetches the current state of taskID from the agent at endpoint.
func (c *HTTPClient) GetTask(ctx context.Context, endpoint, taskID string) (*Task, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	result, err := c.call(ctx, endpoint, MethodTasksGet, TaskQueryParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &task, nil
}

// call executes one JSON-RPC request against endpoint and returns the raw
// result field.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params any) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize params: %w", err)
	}

	reqBody, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrUnreachable, resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: code %d: %s", ErrRemote, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, fmt.Errorf("%w: empty result", ErrMalformedReply)
	}
	return rpcResp.Result, nil
}

// ClearCache drops all cached descriptors.
func (c *HTTPClient) ClearCache() {
	c.cacheMu.Lock()
	c.descriptorCache = make(map[string]*cachedDescriptor)
	c.cacheMu.Unlock()
}

// SetHeader sets a custom header for all requests.
func (c *HTTPClient) SetHeader(key, value string) {
	c.config.Headers[key] = value
}

// Ensure HTTPClient implements the Client interface.
var _ Client = (*HTTPClient)(nil)
