package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/circuit"
)

// ErrSuspended is returned while a sink's circuit is open.
var ErrSuspended = errors.New("feed suspended")

// Guarded stops calling a failing sink until its breaker lets a probe through.
type Guarded struct {
	next    Publisher
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Publisher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Publish(ctx context.Context, entry models.LogEntry) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("%s: %w", g.breaker.Name(), ErrSuspended)
	}
	if err := g.next.Publish(ctx, entry); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "entry feed circuit opened",
				"feed", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "entry feed circuit closed", "feed", g.breaker.Name())
	}
	return nil
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
