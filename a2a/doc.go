// Package a2a implements the agent-to-agent wire protocol used between the
// router and downstream agents: descriptor discovery over a well-known HTTP
// path, and task submission plus status polling over JSON-RPC 2.0.
//
// The package contains the wire types, an HTTP client with descriptor
// caching, and a serving surface that lets a process expose itself as an
// agent by implementing the Executor interface.
package a2a
