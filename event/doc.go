// Package event provides the bounded sink through which workers and the
// buffer report engine activity to external observers.
//
// The sink is the only channel between the engine and presentation code. It
// is deliberately one-directional: observers drain events, they never call
// back into the engine. Publish never blocks a worker; when the sink is full
// the oldest unread event is dropped and counted.
package event
