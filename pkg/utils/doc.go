// Package utils provides the shared helpers used across docgraph.
//
// This package contains:
//   - Bounded concurrent execution with panic recovery (concurrent.go, recovery.go)
//   - Vector math: cosine, clamping and finiteness checks (vector.go)
//   - Set and text normalisation helpers (helpers.go)
package utils
