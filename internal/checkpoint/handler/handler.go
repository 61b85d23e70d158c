package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"truckgate/internal/checkpoint/models"
	dErrors "truckgate/pkg/domain-errors"
	"truckgate/pkg/platform/httputil"
	"truckgate/pkg/platform/middleware/admin"
	"truckgate/pkg/requestcontext"
)

// MaxFormBytes bounds the body of the form endpoints.
const MaxFormBytes = 64 << 10

// Service defines the checkpoint operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, driverName string) (*models.IssueResult, error)
	Validate(ctx context.Context, raw string) models.ValidationResult
	Logs(ctx context.Context) (*models.LogView, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// Handler wires checkpoint endpoints to the checkpoint service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	adminToken string
}

type Option func(h *Handler)

// WithAdminToken requires X-Admin-Token on the log export.
func WithAdminToken(token string) Option {
	return func(h *Handler) {
		h.adminToken = token
	}
}

// New constructs a checkpoint handler with its dependencies.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts checkpoint endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/generate-qr", h.HandleGenerate)
	r.Post("/api/validate-qr", h.HandleValidate)
	r.Get("/logs", h.HandleLogs)
	if h.adminToken != "" {
		r.With(admin.RequireAdminToken(h.adminToken, h.logger)).Get("/api/logs/export", h.HandleExport)
	} else {
		r.Get("/api/logs/export", h.HandleExport)
	}
}

// HandleGenerate handles POST /api/generate-qr.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if err := parseForm(w, r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Issue(ctx, r.PostFormValue("driver_name"))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue code",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "code issued",
		"request_id", requestID,
		"code", result.Code,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromIssueResult(result))
}

// HandleValidate handles POST /api/validate-qr. Every outcome, including a
// refused code, is reported with status 200.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if err := parseForm(w, r); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, ok := r.PostForm["qr_data"]; !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "qr_data is required"))
		return
	}

	result := h.service.Validate(ctx, r.PostForm.Get("qr_data"))
	h.logger.InfoContext(ctx, "code validated",
		"request_id", requestID,
		"outcome", result.Outcome.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromValidationResult(result))
}

// HandleLogs handles GET /logs.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.service.Logs(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read entry log",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLogView(view))
}

// HandleExport handles GET /api/logs/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="entry_logs.csv"`)
	cw := &countingWriter{w: w}
	if err := h.service.ExportCSV(ctx, cw); err != nil {
		h.logger.ErrorContext(ctx, "failed to export entry log",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		// Once bytes are out the status line is gone.
		if cw.n == 0 {
			w.Header().Del("Content-Disposition")
			httputil.WriteError(w, err)
		}
	}
}

// parseForm reads at most MaxFormBytes of form body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dErrors.Wrap(err, dErrors.CodeTooLarge, "request body too large")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body")
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
