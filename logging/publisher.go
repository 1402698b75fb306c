// Package logging carries structured gameplay events from the simulation to
// configurable sinks. The room's ordered event log is one such sink; the
// console sink serves operational visibility.
package logging

import (
	"context"
	"time"
)

// EventType names a gameplay occurrence, e.g. "player-joined" or
// "wave-advanced".
type EventType string

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the actor an event refers to.
type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindNpc     EntityKind = "npc"
	EntityKindNode    EntityKind = "node"
	EntityKindRoom    EntityKind = "room"
)

// EntityRef identifies an entity an event acts on.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Event is a single structured gameplay record.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Publisher receives events from the simulation. Implementations must not
// block the caller: the tick loop publishes inline.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function into a Publisher.
type PublisherFunc func(ctx context.Context, event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}

// Fanout returns a publisher that forwards each event to every non-nil
// publisher in order.
func Fanout(publishers ...Publisher) Publisher {
	kept := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return NopPublisher{}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return fanout(kept)
}

type fanout []Publisher

func (f fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}
