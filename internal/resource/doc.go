// Package resource bounds what index operations may consume.
//
// A Controller tracks three budgets:
//
//   - Memory: heap arenas reserve their size before growing (fail-fast).
//   - Build workers: trees built concurrently across all indexes sharing the controller.
//   - IO: a token bucket throttling bytes written by Save and on-disk builds.
//
// A nil *Controller imposes no limits, so callers never need to nil-check.
package resource
