// Package reminders runs recurring broadcast jobs. Fire times are recomputed
// from the wall clock on every tick, so a process restart never replays or
// drifts a schedule.
package reminders

import (
	"time"

	"github.com/talkincode/botfleet/internal/domain"
)

// matchesDay reports whether the day of t satisfies the frequency's calendar
// rule. Daily means business weekdays, weekly means Monday, monthly means the
// 1st of the month.
func matchesDay(frequency string, t time.Time) bool {
	switch frequency {
	case domain.FrequencyDaily:
		return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
	case domain.FrequencyWeekly:
		return t.Weekday() == time.Monday
	case domain.FrequencyMonthly:
		return t.Day() == 1
	default:
		return false
	}
}

// NextExecutionTime derives the job's next fire time from now. The candidate
// starts at today's configured time; a candidate in the past or on a day the
// frequency rule rejects is pushed forward a day at a time until it lands on
// a matching day.
func NextExecutionTime(job *domain.ReminderJob, now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(),
		job.Hour, job.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for !matchesDay(job.Frequency, candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// DueNow reports whether the job should fire on this tick: today matches the
// frequency rule, the configured time has passed, and this cycle's fire has
// not already been recorded in LastSent.
func DueNow(job *domain.ReminderJob, now time.Time) bool {
	if !job.Active {
		return false
	}
	if !matchesDay(job.Frequency, now) {
		return false
	}
	fireAt := time.Date(now.Year(), now.Month(), now.Day(),
		job.Hour, job.Minute, 0, 0, now.Location())
	if now.Before(fireAt) {
		return false
	}
	if job.LastSent != nil && !job.LastSent.Before(fireAt) {
		return false
	}
	return true
}
