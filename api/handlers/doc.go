// Package handlers implements the management REST surface: agent
// registration and inventory under /api/v1/agents, plus health and
// version endpoints. Every endpoint answers the shared Response envelope
// with the request ID taken from the context.
package handlers
