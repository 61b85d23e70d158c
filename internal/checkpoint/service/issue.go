package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"truckgate/internal/checkpoint/models"
	dErrors "truckgate/pkg/domain-errors"
	"truckgate/pkg/platform/sentinel"
	"truckgate/pkg/requestcontext"
)

const (
	// CodeLength is the number of hex characters in an issued code.
	CodeLength = 16
	// maxCodeAttempts bounds regeneration after a collision.
	maxCodeAttempts = 5
)

// DeriveCode digests the driver name, the issuance time and the attempt
// number into a short hex code.
func DeriveCode(name string, issuedAt time.Time, attempt int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%d", name, issuedAt.UTC().Format(time.RFC3339Nano), attempt)))
	return hex.EncodeToString(sum[:])[:CodeLength]
}

// Issue registers driverName under a new code and renders its QR image.
// Nothing is left in the registry or on disk when it fails.
func (s *Service) Issue(ctx context.Context, driverName string) (result *models.IssueResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkpoint.Issue")
	defer func() {
		s.metrics.ObserveIssue(start)
		if err != nil {
			s.metrics.IncrementIssueFailures()
			span.RecordError(err)
			span.SetStatus(codes.Error, "issue failed")
		}
		span.End()
	}()

	name, err := models.NormalizeDriverName(driverName)
	if err != nil {
		return nil, err
	}
	issuedAt := requestcontext.Now(ctx).UTC()

	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	code, err := s.freshCode(ctx, name, issuedAt)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("checkpoint.code", code))

	payload, err := models.QRPayload{DriverName: name, Code: code, GeneratedAt: issuedAt}.Encode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode code payload")
	}
	png, err := s.images.Encode(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render code image")
	}
	publicPath, err := s.images.Write(code, png)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to store code image")
	}

	rec, err := models.NewDriverRecord(name, code, publicPath, issuedAt)
	if err != nil {
		s.discardImage(ctx, code)
		return nil, err
	}
	if err := s.registry.Insert(ctx, *rec); err != nil {
		s.discardImage(ctx, code)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "code already issued, retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to register driver")
	}

	s.metrics.IncrementCodesIssued()
	s.logger.InfoContext(ctx, "driver code issued",
		"request_id", requestcontext.RequestID(ctx),
		"code", code,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &models.IssueResult{
		Code:        code,
		QRImage:     publicPath,
		DriverName:  name,
		GeneratedAt: issuedAt,
	}, nil
}

// freshCode derives codes until one is not yet in the registry.
// Must be called with s.issueMu held.
func (s *Service) freshCode(ctx context.Context, name string, issuedAt time.Time) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := DeriveCode(name, issuedAt, attempt)
		exists, err := s.registry.Exists(ctx, code)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeDataAccess, "failed to read registry")
		}
		if !exists {
			return code, nil
		}
		s.logger.WarnContext(ctx, "code collision, regenerating",
			"request_id", requestcontext.RequestID(ctx),
			"attempt", attempt,
		)
	}
	return "", dErrors.New(dErrors.CodeConflict, "could not derive a unique code")
}

func (s *Service) discardImage(ctx context.Context, code string) {
	if err := s.images.Remove(code); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned code image",
			"request_id", requestcontext.RequestID(ctx),
			"code", code,
			"error", err,
		)
	}
}
