// Package expiry computes plan expiry instants on local calendar-day boundaries.
//
// All instants are stored in UTC. The only place the local offset is applied is
// LocalDayBoundary; every expiry computation goes through it.
package expiry

import "time"

// LocalOffset is Myanmar Standard Time (UTC+6:30).
const LocalOffset = 6*time.Hour + 30*time.Minute

const day = 24 * time.Hour

// MaxPlanDays bounds a single plan. From multiplies planDays into a
// time.Duration, which overflows past roughly 106751 days.
const MaxPlanDays = 3650

// LocalDayBoundary returns, in UTC, the instant at which the local calendar day
// containing t began for a zone with the given fixed offset.
func LocalDayBoundary(t time.Time, offset time.Duration) time.Time {
	local := t.UTC().Add(offset)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return start.Add(-offset)
}

// From returns the expiry for a plan of planDays starting at now.
func From(now time.Time, planDays int) time.Time {
	return LocalDayBoundary(now, LocalOffset).Add(time.Duration(planDays) * day)
}

// Extend returns the expiry after renewing for planDays. The plan is extended
// from the current expiry when it is still in the future, otherwise from now.
func Extend(current, now time.Time, planDays int) time.Time {
	base := now
	if current.After(now) {
		base = current
	}
	return From(base, planDays)
}

// Reached reports whether the expiry instant has been reached at now.
func Reached(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}
