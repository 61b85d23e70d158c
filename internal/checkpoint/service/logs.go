package service

import (
	"context"
	"io"

	"truckgate/internal/checkpoint/models"
	dErrors "truckgate/pkg/domain-errors"
)

// Logs returns aggregate stats and the most recent entries, newest first.
func (s *Service) Logs(ctx context.Context) (*models.LogView, error) {
	stats, err := s.entries.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to read entry log")
	}
	entries, err := s.entries.Recent(ctx, s.recentLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to read entry log")
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return &models.LogView{Stats: stats, Entries: entries}, nil
}

// ExportCSV streams the tabular entry log to w.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	if _, err := s.entries.CopyCSV(ctx, w); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to export entry log")
	}
	return nil
}
