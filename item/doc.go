// Package item defines the record that moves through the bounded buffer.
//
// An Item is owned by exactly one party at any instant: the producer that
// built it, the buffer while it is enqueued, or the consumer that dequeued
// it. Ownership transfers happen inside the buffer's critical section, so the
// Item itself carries no locks; its status machine only ever moves forward.
package item
