package models

import "time"

// Outcome classifies a validation attempt.
type Outcome string

const (
	OutcomeValid       Outcome = "VALID"
	OutcomeInvalid     Outcome = "INVALID"
	OutcomeSystemError Outcome = "SYSTEM_ERROR"
)

func (o Outcome) String() string {
	return string(o)
}

// IsValid reports whether o is one of the known outcomes.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeValid, OutcomeInvalid, OutcomeSystemError:
		return true
	}
	return false
}

// Driver names recorded when the registry cannot supply one.
const (
	UnknownDriver = "unknown"
	ErrorDriver   = "Error"
)

// LogEntry is one validation attempt. Entries are appended, never edited.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	DriverName string    `json:"driver_name"`
	QRCode     string    `json:"qr_code"`
	Status     Outcome   `json:"status"`
	Notes      string    `json:"notes"`
}

// Stats aggregates the entry log. Invalid counts every entry that did not
// authorize entry, SystemErrors is the subset that failed on a fault.
type Stats struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	SystemErrors int `json:"system_errors"`
}

// Add folds one entry into the counts.
func (s *Stats) Add(e LogEntry) {
	s.Total++
	switch e.Status {
	case OutcomeValid:
		s.Valid++
	case OutcomeSystemError:
		s.Invalid++
		s.SystemErrors++
	default:
		s.Invalid++
	}
}

// LogView is the read model behind GET /logs.
type LogView struct {
	Stats   Stats
	Entries []LogEntry
}

// ValidationResult is what the checkpoint tells the gate.
type ValidationResult struct {
	Authorized bool
	DriverName string
	Code       string
	Message    string
	Outcome    Outcome
}
