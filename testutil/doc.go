// Package testutil provides shared test helpers: bounded test contexts,
// polling assertions, and JSON conveniences. Protocol doubles live in the
// mocks subpackage and the StubAgent; canned descriptors in fixtures.
package testutil
