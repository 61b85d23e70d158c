package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	dErrors "truckgate/pkg/domain-errors"
)

// MaxDriverNameLength bounds driver names in runes.
const MaxDriverNameLength = 200

// DriverRecord is one driver registration, keyed by its issued code.
//
// Invariants:
//   - Code is unique within the registry
//   - Name is non-empty, NFC-normalized, at most MaxDriverNameLength runes
//   - A record is never mutated or deleted after insertion
//
// Used is always written false. Nothing reads or updates it, so a code
// authorizes any number of entries.
type DriverRecord struct {
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	GeneratedAt time.Time `json:"generated_at"`
	QRImage     string    `json:"qr_image"`
	Used        bool      `json:"used"`
}

// NewDriverRecord builds a record for a freshly issued code.
func NewDriverRecord(name, code, qrImage string, generatedAt time.Time) (*DriverRecord, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "code cannot be empty")
	}
	name, err := NormalizeDriverName(name)
	if err != nil {
		return nil, err
	}
	return &DriverRecord{
		Name:        name,
		Code:        code,
		GeneratedAt: generatedAt,
		QRImage:     qrImage,
		Used:        false,
	}, nil
}

// NormalizeDriverName trims surrounding space and applies Unicode NFC so the
// same name typed on different devices produces the same bytes.
func NormalizeDriverName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "driver_name is required")
	}
	if utf8.RuneCountInString(name) > MaxDriverNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "driver_name must be 200 characters or less")
	}
	return name, nil
}

// IssueResult is returned to the caller after a successful issue.
type IssueResult struct {
	Code        string
	QRImage     string
	DriverName  string
	GeneratedAt time.Time
}
