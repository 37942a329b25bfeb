package closing

import (
	"errors"
	"testing"
	"time"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func recordOn(date string, status ClosingStatus) ClosingRecord {
	return ClosingRecord{Date: day(date), Status: status}
}

func TestSeverity_Rank(t *testing.T) {
	ordered := []Severity{SeverityLate, SeverityPendingCorrection, SeverityInReview, SeverityAwaiting, SeverityCompleted}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i-1].Rank(), ordered[i].Rank(), "%s should outrank %s", ordered[i-1], ordered[i])
	}
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestSeverityForStatus(t *testing.T) {
	assert.Equal(t, SeverityAwaiting, SeverityForStatus(ClosingStatusDraft))
	assert.Equal(t, SeverityInReview, SeverityForStatus(ClosingStatusInReview))
	assert.Equal(t, SeverityPendingCorrection, SeverityForStatus(ClosingStatusReturned))
	assert.Equal(t, SeverityCompleted, SeverityForStatus(ClosingStatusCompleted))
}

func TestProjectCalendar(t *testing.T) {
	// 2024-03-01 is a Friday, 03-03 a Sunday
	rng, err := NewDateRange(day("2024-03-01"), day("2024-03-07"))
	require.NoError(t, err)
	today := day("2024-03-05").Add(15 * time.Hour)

	records := []ClosingRecord{
		recordOn("2024-03-01", ClosingStatusCompleted),
		recordOn("2024-03-01", ClosingStatusReturned),
		recordOn("2024-03-01", ClosingStatusInReview),
		recordOn("2024-03-04", ClosingStatusInReview),
		recordOn("2024-03-04", ClosingStatusCompleted),
		recordOn("2024-03-06", ClosingStatusCompleted),
		recordOn("2024-03-10", ClosingStatusReturned),
	}

	cal := ProjectCalendar(records, rng, today, DefaultBusinessCalendar())
	got := cal.Severities()

	assert.Equal(t, map[string]Severity{
		"2024-03-01": SeverityPendingCorrection,
		"2024-03-02": SeverityLate,
		"2024-03-04": SeverityInReview,
		"2024-03-05": SeverityAwaiting,
		"2024-03-06": SeverityCompleted,
		"2024-03-07": SeverityAwaiting,
	}, got)

	first := cal["2024-03-01"]
	assert.Equal(t, 1, first.Counts[SeverityCompleted])
	assert.Equal(t, 1, first.Counts[SeverityPendingCorrection])
	assert.Equal(t, 1, first.Counts[SeverityInReview])
	assert.Equal(t, 1, cal["2024-03-02"].Counts[SeverityLate])

	// the input is untouched
	assert.Equal(t, ClosingStatusReturned, records[1].Status)
}

func TestProjectCalendar_Drafts(t *testing.T) {
	rng, err := NewDateRange(day("2024-03-04"), day("2024-03-06"))
	require.NoError(t, err)
	records := []ClosingRecord{
		recordOn("2024-03-04", ClosingStatusDraft),
		recordOn("2024-03-06", ClosingStatusDraft),
	}

	got := ProjectCalendar(records, rng, day("2024-03-05"), DefaultBusinessCalendar()).Severities()
	assert.Equal(t, SeverityLate, got["2024-03-04"])
	assert.Equal(t, SeverityAwaiting, got["2024-03-05"])
	assert.Equal(t, SeverityAwaiting, got["2024-03-06"])
}

func TestProjectCalendar_Holidays(t *testing.T) {
	rng, err := NewDateRange(day("2024-03-01"), day("2024-03-01"))
	require.NoError(t, err)
	cal := NewBusinessCalendar([]time.Weekday{time.Friday}, []string{"2024-03-01"})

	got := ProjectCalendar(nil, rng, day("2024-03-10"), cal)
	assert.Empty(t, got)
}

func TestNewDateRange(t *testing.T) {
	_, err := NewDateRange(day("2024-03-05"), day("2024-03-01"))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewDateRange(time.Time{}, day("2024-03-01"))
	assert.True(t, errors.Is(err, ErrMissingRequiredField))

	_, err = NewDateRange(day("2024-01-01"), day("2025-12-31"))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	rng, err := NewDateRange(day("2024-02-27"), day("2024-03-02"))
	require.NoError(t, err)
	assert.Len(t, rng.Days(), 5)
	assert.True(t, rng.Contains(day("2024-02-29").Add(23*time.Hour)))
	assert.False(t, rng.Contains(day("2024-03-03")))
}
