// Package engine assembles the bounded buffer, the event sink and the
// producer and consumer workers into one coordinated unit with a single
// control surface.
//
// The engine owns construction order and teardown order: all validation
// failures surface from New before any goroutine exists, Start fans out to
// the workers, and Stop waits for every worker to drain within a deadline.
// Pause, Resume and Stop are idempotent and safe from any goroutine.
package engine
