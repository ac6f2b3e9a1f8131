// Package buffer implements the bounded FIFO queue shared between producer
// and consumer workers.
//
// # Protocol
//
// Two counting semaphores track free and occupied slots; a single mutex
// guards the item queue. Every Put and Take follows the same discipline:
//
//  1. Acquire the direction's semaphore (emptySlots for Put, fullSlots for
//     Take), bounded by a timeout.
//  2. Acquire the mutex, mutate the queue, release the mutex.
//  3. Release the sibling semaphore.
//
// Acquiring the semaphore before the mutex, and never holding both
// semaphores, fixes one global lock-acquisition order and rules out circular
// wait. The bounded acquisition converts a would-be deadlock into a
// reported, retryable timeout.
//
// # Statistics
//
// Counters live behind their own lock so a statistics read never contends
// with a queue mutation. Counter updates happen after the corresponding
// mutex release; they are eventually consistent with the queue, not
// transactional with it.
package buffer
