package events

import (
	"context"

	"github.com/contrastkit/contrastkit/log"
)

// Fanout delivers each event to every sink. Sink failures are logged and
// never returned, so forwarding cannot fail a request.
type Fanout struct {
	sinks  []Publisher
	logger log.Logger
}

func NewFanout(logger log.Logger, sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			f.logger.Error(ctx, "Failed to forward event", err, log.Fields{
				"event_id":   event.ID,
				"event_type": event.Type,
				"site_id":    event.SiteID,
			})
		}
	}

	return nil
}
