// Package schedule drives periodic healer passes and guarantees a single
// active healer process via a file-based lock with expiry.
package schedule
