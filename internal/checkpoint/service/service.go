// Package service implements the checkpoint workflow: issuing driver codes,
// validating presented codes, and serving the entry log read model.
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"

	"truckgate/internal/checkpoint/feed"
	"truckgate/internal/checkpoint/metrics"
	"truckgate/internal/checkpoint/models"
)

// DefaultRecentLimit caps the entries returned by Logs.
const DefaultRecentLimit = 50

var tracer = otel.Tracer("truckgate/internal/checkpoint/service")

type RegistryStore interface {
	Find(ctx context.Context, code string) (models.DriverRecord, error)
	Exists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, rec models.DriverRecord) error
}

type EntryLog interface {
	Append(ctx context.Context, entry models.LogEntry) error
	Recent(ctx context.Context, limit int) ([]models.LogEntry, error)
	Stats(ctx context.Context) (models.Stats, error)
	CopyCSV(ctx context.Context, w io.Writer) (int64, error)
}

type ImageRenderer interface {
	Encode(content []byte) ([]byte, error)
	Write(code string, png []byte) (string, error)
	Remove(code string) error
}

// Service orchestrates the registry, the entry log and the code images.
type Service struct {
	registry    RegistryStore
	entries     EntryLog
	images      ImageRenderer
	feed        feed.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	recentLimit int

	// issueMu serializes issues so the collision check and the insert
	// observe the same registry state.
	issueMu sync.Mutex
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithFeed(p feed.Publisher) Option {
	return func(s *Service) {
		s.feed = p
	}
}

func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// New constructs a Service.
func New(registry RegistryStore, entries EntryLog, images ImageRenderer, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		entries:     entries,
		images:      images,
		feed:        feed.Noop{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		recentLimit: DefaultRecentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
