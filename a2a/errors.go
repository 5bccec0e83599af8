package a2a

import "errors"

// Descriptor validation errors.
var (
	// ErrMissingName indicates the descriptor document has no agent name.
	ErrMissingName = errors.New("agent descriptor: missing name")
	// ErrMissingURL indicates the descriptor document has no endpoint URL.
	ErrMissingURL = errors.New("agent descriptor: missing url")
)

// Protocol errors.
var (
	// ErrEmptyEndpoint indicates a call was attempted without an endpoint.
	ErrEmptyEndpoint = errors.New("a2a: empty endpoint")
	// ErrUnreachable indicates the remote agent could not be reached or
	// answered with a non-success HTTP status.
	ErrUnreachable = errors.New("a2a: remote agent unreachable")
	// ErrMalformedReply indicates the remote reply could not be decoded or
	// matched neither a task handle nor a direct message.
	ErrMalformedReply = errors.New("a2a: malformed reply")
	// ErrRemote indicates the remote agent answered with a JSON-RPC error.
	ErrRemote = errors.New("a2a: remote error")
)
