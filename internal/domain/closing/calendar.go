package closing

import (
	"fmt"
	"time"

	"github.com/bpo/cashclosing/internal/domain/shared"
)

// MaxCalendarSpanDays bounds a single projection request
const MaxCalendarSpanDays = 366

// Severity is the per-day status shown on calendar cells
type Severity string

const (
	SeverityLate              Severity = "late"
	SeverityPendingCorrection Severity = "pending_correction"
	SeverityInReview          Severity = "in_review"
	SeverityAwaiting          Severity = "awaiting"
	SeverityCompleted         Severity = "completed"
)

// Rank orders severities; higher is worse
func (s Severity) Rank() int {
	switch s {
	case SeverityLate:
		return 5
	case SeverityPendingCorrection:
		return 4
	case SeverityInReview:
		return 3
	case SeverityAwaiting:
		return 2
	case SeverityCompleted:
		return 1
	}
	return 0
}

// String returns the string representation of Severity
func (s Severity) String() string {
	return string(s)
}

// SeverityForStatus maps a record status to its calendar severity.
// Drafts have not been submitted yet, so the day is still awaiting.
func SeverityForStatus(status ClosingStatus) Severity {
	switch status {
	case ClosingStatusReturned:
		return SeverityPendingCorrection
	case ClosingStatusInReview:
		return SeverityInReview
	case ClosingStatusCompleted:
		return SeverityCompleted
	default:
		return SeverityAwaiting
	}
}

// severityForRecord treats a draft left unsubmitted past its day like a
// missing submission.
func severityForRecord(r *ClosingRecord, today time.Time) Severity {
	if r.Status == ClosingStatusDraft && r.Date.Before(today) {
		return SeverityLate
	}
	return SeverityForStatus(r.Status)
}

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange builds a validated inclusive range
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: truncateToDate(from), To: truncateToDate(to)}
	if r.From.IsZero() || r.To.IsZero() {
		return DateRange{}, shared.NewDomainError(CodeMissingRequiredField, "date range requires both from and to")
	}
	if r.To.Before(r.From) {
		return DateRange{}, shared.NewDomainError(shared.CodeInvalidInput, "date range end is before its start")
	}
	if r.To.Sub(r.From) > time.Duration(MaxCalendarSpanDays-1)*24*time.Hour {
		return DateRange{}, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("date range may span at most %d days", MaxCalendarSpanDays))
	}
	return r, nil
}

// Contains reports whether d falls within the range
func (r DateRange) Contains(d time.Time) bool {
	d = truncateToDate(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns every date of the range in order
func (r DateRange) Days() []time.Time {
	days := make([]time.Time, 0)
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// BusinessCalendar decides which days expect a closing
type BusinessCalendar struct {
	Weekdays map[time.Weekday]bool
	Holidays map[string]bool
}

// DefaultBusinessCalendar expects closings Monday through Saturday
func DefaultBusinessCalendar() BusinessCalendar {
	return NewBusinessCalendar([]time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
	}, nil)
}

// NewBusinessCalendar builds a calendar from working weekdays and YYYY-MM-DD holidays
func NewBusinessCalendar(weekdays []time.Weekday, holidays []string) BusinessCalendar {
	cal := BusinessCalendar{
		Weekdays: make(map[time.Weekday]bool, len(weekdays)),
		Holidays: make(map[string]bool, len(holidays)),
	}
	for _, w := range weekdays {
		cal.Weekdays[w] = true
	}
	for _, h := range holidays {
		cal.Holidays[h] = true
	}
	return cal
}

// IsBusinessDay reports whether a closing is expected on d
func (c BusinessCalendar) IsBusinessDay(d time.Time) bool {
	if c.Holidays[d.Format(DateLayout)] {
		return false
	}
	return c.Weekdays[d.Weekday()]
}

// CalendarDay is the projection of one date
type CalendarDay struct {
	Date     string           `json:"date"`
	Severity Severity         `json:"severity"`
	Counts   map[Severity]int `json:"counts"`
}

// Calendar maps YYYY-MM-DD to its projected day
type Calendar map[string]CalendarDay

// Severities flattens the calendar to date -> worst severity
func (c Calendar) Severities() map[string]Severity {
	out := make(map[string]Severity, len(c))
	for date, day := range c {
		out[date] = day.Severity
	}
	return out
}

func (c Calendar) add(date string, s Severity) {
	day, ok := c[date]
	if !ok {
		day = CalendarDay{Date: date, Severity: s, Counts: make(map[Severity]int)}
	}
	day.Counts[s]++
	if s.Rank() > day.Severity.Rank() {
		day.Severity = s
	}
	c[date] = day
}

// ProjectCalendar computes the worst-case severity of every day in the range.
// Business days without any record get a no-submission marker: late when the
// day is before today, awaiting otherwise. Drafts count as no submission.
// It never mutates the records.
func ProjectCalendar(records []ClosingRecord, rng DateRange, today time.Time, cal BusinessCalendar) Calendar {
	out := make(Calendar)
	today = truncateToDate(today)

	for i := range records {
		r := &records[i]
		if r.Date.IsZero() || !rng.Contains(r.Date) {
			continue
		}
		out.add(r.DateString(), severityForRecord(r, today))
	}

	for _, d := range rng.Days() {
		key := d.Format(DateLayout)
		if _, seen := out[key]; seen || !cal.IsBusinessDay(d) {
			continue
		}
		if d.Before(today) {
			out.add(key, SeverityLate)
		} else {
			out.add(key, SeverityAwaiting)
		}
	}
	return out
}
