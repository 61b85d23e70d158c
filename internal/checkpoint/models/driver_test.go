package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "truckgate/pkg/domain-errors"
)

func TestNormalizeDriverName(t *testing.T) {
	t.Run("trims and composes", func(t *testing.T) {
		got, err := NormalizeDriverName("  Jose\u0301 Pe\u0301rez ")
		require.NoError(t, err)
		assert.Equal(t, "Jos\u00e9 P\u00e9rez", got)
	})

	t.Run("rejects blank", func(t *testing.T) {
		_, err := NormalizeDriverName("   \t")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects overlong", func(t *testing.T) {
		_, err := NormalizeDriverName(strings.Repeat("ñ", MaxDriverNameLength+1))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts exactly max runes", func(t *testing.T) {
		_, err := NormalizeDriverName(strings.Repeat("ñ", MaxDriverNameLength))
		require.NoError(t, err)
	})
}

func TestNewDriverRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec, err := NewDriverRecord(" Ana Torres ", "abc", "static/qr_codes/qr_abc.png", now)
	require.NoError(t, err)
	assert.Equal(t, "Ana Torres", rec.Name)
	assert.Equal(t, "abc", rec.Code)
	assert.Equal(t, now, rec.GeneratedAt)
	assert.False(t, rec.Used)

	_, err = NewDriverRecord("Ana", "", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestStatsAdd(t *testing.T) {
	var s Stats
	for _, o := range []Outcome{OutcomeValid, OutcomeInvalid, OutcomeSystemError, OutcomeValid} {
		s.Add(LogEntry{Status: o})
	}
	assert.Equal(t, Stats{Total: 4, Valid: 2, Invalid: 2, SystemErrors: 1}, s)
}

func TestOutcomeIsValid(t *testing.T) {
	assert.True(t, OutcomeValid.IsValid())
	assert.True(t, OutcomeInvalid.IsValid())
	assert.True(t, OutcomeSystemError.IsValid())
	assert.False(t, Outcome("Entrada válida").IsValid())
}
