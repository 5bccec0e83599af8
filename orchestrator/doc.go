// Package orchestrator routes natural-language requests to registered
// downstream agents. It holds the in-memory capability registry, the
// keyword and skill scoring engine, the two-phase routing workflow, and the
// forwarder that submits the winning request over the agent protocol and
// polls it to completion.
//
// Each request is processed independently against an immutable snapshot of
// the registry; nothing about a request survives past its RoutingResult.
package orchestrator
