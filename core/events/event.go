package events

import "payway/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Wire is implemented by events that can render themselves into the
// attribute map representation consumed by RPC and websocket subscribers.
type Wire interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
