// Package audit keeps an append-only JSON trail of billing and install
// changes, one line per domain event.
package audit

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/contrastkit/contrastkit/internal/events"
)

// Entry is one audit line.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	EventID   string                 `json:"eventId"`
	Action    string                 `json:"action"`
	SiteID    string                 `json:"siteId,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Trail writes audit entries to w. It implements events.Publisher so it can
// sit in the event fanout next to the forwarding sinks.
type Trail struct {
	logger zerolog.Logger
	now    func() time.Time
}

var _ events.Publisher = (*Trail)(nil)

func NewTrail(w io.Writer) *Trail {
	return &Trail{
		logger: zerolog.New(w).With().Str("service", "contrastkit").Logger(),
		now:    time.Now,
	}
}

// Publish records e. Writing never fails the caller.
func (t *Trail) Publish(_ context.Context, e events.Event) error {
	entry := Entry{
		Timestamp: t.now().UTC(),
		EventID:   e.ID,
		Action:    e.Type,
		SiteID:    e.SiteID,
		Details:   e.Data,
	}

	t.logger.Log().Interface("audit_event", entry).Msg("")

	return nil
}
