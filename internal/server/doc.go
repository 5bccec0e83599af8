// Package server manages HTTP listener lifecycles: non-blocking start,
// graceful shutdown, and SIGINT/SIGTERM handling with asynchronous error
// propagation.
package server
