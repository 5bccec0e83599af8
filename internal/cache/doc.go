// Package cache provides a Redis-backed cache with JSON helpers and the
// registry endpoint snapshot that lets a restarted router re-register
// its agents.
package cache
