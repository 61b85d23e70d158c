// Package feed fans appended log entries out to downstream consumers such as
// gate dashboards. Publishing is best effort: the entry log is the record of
// truth and a feed failure never changes a validation outcome.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"truckgate/internal/checkpoint/models"
)

// Publisher delivers one entry to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, entry models.LogEntry) error
	Close() error
}

// Message is the wire form of a published entry.
type Message struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	DriverName string    `json:"driver_name"`
	QRCode     string    `json:"qr_code"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
}

// NewMessage wraps entry with a fresh message ID.
func NewMessage(entry models.LogEntry) Message {
	return Message{
		ID:         uuid.NewString(),
		Timestamp:  entry.Timestamp.UTC(),
		DriverName: entry.DriverName,
		QRCode:     entry.QRCode,
		Status:     string(entry.Status),
		Notes:      entry.Notes,
	}
}

// Encode renders the message as JSON.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Noop discards every entry. It is used when no sink is configured.
type Noop struct{}

func (Noop) Publish(context.Context, models.LogEntry) error { return nil }
func (Noop) Close() error                                   { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, entry models.LogEntry) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
