package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/sentinel"
	"truckgate/pkg/requestcontext"
)

const (
	MessageAuthorized    = "entry authorized"
	MessageNotRegistered = "code not valid or not registered"
	NotesNotFound        = "code not found"

	// maxLoggedCodeRunes bounds the presented code kept on refused and
	// system error entries.
	maxLoggedCodeRunes = 50
	feedTimeout        = 2 * time.Second
)

// Validate decides whether raw authorizes entry and records the attempt.
// Every input yields a result; faults become SYSTEM_ERROR outcomes.
func (s *Service) Validate(ctx context.Context, raw string) (result models.ValidationResult) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkpoint.Validate")
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			span.RecordError(err)
			result = s.systemError(ctx, raw, err)
		}
		if result.Outcome == models.OutcomeSystemError {
			span.SetStatus(codes.Error, "validation fault")
		}
		span.SetAttributes(attribute.String("checkpoint.outcome", result.Outcome.String()))
		s.metrics.IncrementValidation(result.Outcome)
		s.metrics.ObserveValidate(start)
		span.End()
	}()

	result, err := s.validate(ctx, raw)
	if err != nil {
		span.RecordError(err)
		return s.systemError(ctx, raw, err)
	}
	return result
}

func (s *Service) validate(ctx context.Context, raw string) (models.ValidationResult, error) {
	payload := models.ParsePayload(raw)
	now := requestcontext.Now(ctx).UTC()

	rec, err := s.registry.Find(ctx, payload.Code)
	switch {
	case err == nil:
		entry := models.LogEntry{
			Timestamp:  now,
			DriverName: rec.Name,
			QRCode:     payload.Code,
			Status:     models.OutcomeValid,
			Notes:      "issued at " + rec.GeneratedAt.UTC().Format(time.RFC3339),
		}
		if err := s.record(ctx, entry); err != nil {
			return models.ValidationResult{}, err
		}
		s.logger.InfoContext(ctx, "entry authorized",
			"request_id", requestcontext.RequestID(ctx),
			"code", payload.Code,
		)
		return models.ValidationResult{
			Authorized: true,
			DriverName: rec.Name,
			Code:       payload.Code,
			Message:    MessageAuthorized,
			Outcome:    models.OutcomeValid,
		}, nil

	case errors.Is(err, sentinel.ErrNotFound):
		code := truncateRunes(payload.Code, maxLoggedCodeRunes)
		name := truncateRunes(payload.DriverName, models.MaxDriverNameLength)
		entry := models.LogEntry{
			Timestamp:  now,
			DriverName: name,
			QRCode:     code,
			Status:     models.OutcomeInvalid,
			Notes:      NotesNotFound,
		}
		if err := s.record(ctx, entry); err != nil {
			return models.ValidationResult{}, err
		}
		s.logger.InfoContext(ctx, "entry refused",
			"request_id", requestcontext.RequestID(ctx),
			"payload_kind", payload.Kind.String(),
		)
		return models.ValidationResult{
			DriverName: name,
			Code:       code,
			Message:    MessageNotRegistered,
			Outcome:    models.OutcomeInvalid,
		}, nil

	default:
		return models.ValidationResult{}, fmt.Errorf("look up code: %w", err)
	}
}

// systemError records the fault as its own entry. It never panics.
func (s *Service) systemError(ctx context.Context, raw string, cause error) models.ValidationResult {
	code := truncateRunes(raw, maxLoggedCodeRunes)
	s.logger.ErrorContext(ctx, "validation fault",
		"request_id", requestcontext.RequestID(ctx),
		"error", cause,
	)

	entry := models.LogEntry{
		Timestamp:  requestcontext.Now(ctx).UTC(),
		DriverName: models.ErrorDriver,
		QRCode:     code,
		Status:     models.OutcomeSystemError,
		Notes:      cause.Error(),
	}
	if err := s.record(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record system error entry",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}

	return models.ValidationResult{
		DriverName: models.ErrorDriver,
		Code:       code,
		Message:    "error processing code: " + cause.Error(),
		Outcome:    models.OutcomeSystemError,
	}
}

// record appends entry and then publishes it to the feed.
func (s *Service) record(ctx context.Context, entry models.LogEntry) error {
	if err := s.safeAppend(ctx, entry); err != nil {
		return err
	}
	s.publish(ctx, entry)
	return nil
}

func (s *Service) safeAppend(ctx context.Context, entry models.LogEntry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("append entry: panic: %v", rec)
		}
	}()
	if err := s.entries.Append(ctx, entry); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, entry models.LogEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			s.metrics.IncrementFeedFailures()
			s.logger.WarnContext(ctx, "entry feed panicked", "panic", rec)
		}
	}()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), feedTimeout)
	defer cancel()
	if err := s.feed.Publish(pctx, entry); err != nil {
		s.metrics.IncrementFeedFailures()
		s.logger.WarnContext(ctx, "failed to publish entry",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
