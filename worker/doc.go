// Package worker implements the producer and consumer workers that drive the
// bounded buffer.
//
// Both roles share one state machine and one control surface; they differ
// only in the operation the loop body performs (build-and-put versus
// take-and-deliver). Control signals are cooperative: pause, resume and stop
// are observed at the top of each loop iteration and at timeout boundaries,
// never by interrupting a blocked semaphore wait. A semaphore timeout is
// reported and retried; the only way a worker terminates is an explicit stop.
package worker
