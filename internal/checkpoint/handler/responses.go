package handler

import (
	"time"

	"truckgate/internal/checkpoint/models"
)

// IssueResponse is the HTTP response for POST /api/generate-qr.
type IssueResponse struct {
	Success     bool      `json:"success"`
	QRCode      string    `json:"qr_code"`
	QRImage     string    `json:"qr_image"`
	DriverName  string    `json:"driver_name"`
	GeneratedAt time.Time `json:"generated_at"`
}

func FromIssueResult(r *models.IssueResult) *IssueResponse {
	return &IssueResponse{
		Success:     true,
		QRCode:      r.Code,
		QRImage:     r.QRImage,
		DriverName:  r.DriverName,
		GeneratedAt: r.GeneratedAt,
	}
}

// ValidateResponse is the HTTP response for POST /api/validate-qr.
type ValidateResponse struct {
	Success    bool   `json:"success"`
	DriverName string `json:"driver_name"`
	QRCode     string `json:"qr_code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

func FromValidationResult(r models.ValidationResult) *ValidateResponse {
	return &ValidateResponse{
		Success:    r.Authorized,
		DriverName: r.DriverName,
		QRCode:     r.Code,
		Message:    r.Message,
		Status:     r.Outcome.String(),
	}
}

// LogsResponse is the HTTP response for GET /logs.
type LogsResponse struct {
	Total        int                `json:"total"`
	Valid        int                `json:"valid"`
	Invalid      int                `json:"invalid"`
	SystemErrors int                `json:"system_errors"`
	Entries      []LogEntryResponse `json:"entries"`
}

type LogEntryResponse struct {
	Timestamp  time.Time `json:"timestamp"`
	DriverName string    `json:"driver_name"`
	QRCode     string    `json:"qr_code"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
}

func FromLogView(v *models.LogView) *LogsResponse {
	entries := make([]LogEntryResponse, 0, len(v.Entries))
	for _, e := range v.Entries {
		entries = append(entries, LogEntryResponse{
			Timestamp:  e.Timestamp,
			DriverName: e.DriverName,
			QRCode:     e.QRCode,
			Status:     e.Status.String(),
			Notes:      e.Notes,
		})
	}
	return &LogsResponse{
		Total:        v.Stats.Total,
		Valid:        v.Stats.Valid,
		Invalid:      v.Stats.Invalid,
		SystemErrors: v.Stats.SystemErrors,
		Entries:      entries,
	}
}
