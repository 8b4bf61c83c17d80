package events

import "github.com/holiman/uint256"

// Event is a pool state change. Implementations are plain value types.
type Event interface {
	EventType() string
}

// Envelope is the string-keyed rendering of an event used by logs and
// external consumers.
type Envelope struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Typed is implemented by events that can render themselves as an Envelope.
type Typed interface {
	Event
	Envelope() *Envelope
}

// Emitter receives the events of committed operations, in order.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(evt Event) {
	if f != nil {
		f(evt)
	}
}

// NoopEmitter discards everything.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

func formatUint256(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
