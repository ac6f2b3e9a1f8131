// Package semaphore provides a counting semaphore with bounded acquisition.
//
// Unlike golang.org/x/sync/semaphore, this implementation exposes its current
// count, which the buffer needs to verify the empty+full == capacity invariant
// and to report occupancy without touching the buffer mutex. The semaphore is
// also capped: releasing above the configured capacity indicates a protocol
// bug on the caller's side and panics, the same way sync.WaitGroup panics on
// a negative counter.
package semaphore
