// Package errors provides standardized error handling patterns for conveyor
// components. It includes error classification, standard error variables, and
// helper functions for consistent error wrapping across the engine.
//
// Errors fall into three classes:
//   - Transient: recoverable, safe to retry (semaphore timeouts)
//   - Invalid: caller or configuration mistakes (bad capacity, bad transition)
//   - Fatal: unrecoverable conditions that should stop processing
//
// The engine itself has no fatal runtime errors once constructed; only
// configuration errors are fatal, and those surface before any worker starts.
package errors
