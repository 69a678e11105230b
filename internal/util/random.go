// Package util provides small helpers shared across citabot components.
package util

import (
	"math/rand/v2"
	"strings"
	"time"
)

const upperAlphaNumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateUpperAlphaNumeric generates a random uppercase alphanumeric string
// of the specified length. Uses math/rand/v2; collision probability is accepted
// for the volumes this service handles.
func GenerateUpperAlphaNumeric(length int) string {
	if length <= 0 {
		return ""
	}
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(upperAlphaNumeric[rand.IntN(len(upperAlphaNumeric))])
	}
	return builder.String()
}

// AppointmentIDSuffixLength is the length of the random suffix appended to
// appointment identifiers.
const AppointmentIDSuffixLength = 4

// GenerateAppointmentID builds a human-readable appointment identifier in the
// form "C-<YYYY-MMDD-HHmm>-<4 uppercase alphanumerics>", local to the given
// timezone.
func GenerateAppointmentID(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return "C-" + t.Format("2006-0102-1504") + "-" + GenerateUpperAlphaNumeric(AppointmentIDSuffixLength)
}

// BackupTimestamp formats a time as a sortable suffix for backup file names.
func BackupTimestamp(t time.Time) string {
	return t.Format("20060102-150405")
}
