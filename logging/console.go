package logging

import (
	"context"
	"log"
)

// ConsoleSink forwards events at or above a minimum severity to a standard
// library logger.
type ConsoleSink struct {
	logger  *log.Logger
	minimum Severity
}

// NewConsoleSink wraps logger; a nil logger uses log.Default().
func NewConsoleSink(logger *log.Logger, minimum Severity) *ConsoleSink {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleSink{logger: logger, minimum: minimum}
}

// Publish implements Publisher.
func (s *ConsoleSink) Publish(_ context.Context, event Event) {
	if s == nil || event.Severity < s.minimum {
		return
	}
	if event.Message != "" {
		s.logger.Printf("event=%s tick=%d actor=%s/%s msg=%q", event.Type, event.Tick, event.Actor.Kind, event.Actor.ID, event.Message)
		return
	}
	s.logger.Printf("event=%s tick=%d actor=%s/%s", event.Type, event.Tick, event.Actor.Kind, event.Actor.ID)
}
