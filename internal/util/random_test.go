package util

import (
	"regexp"
	"testing"
	"time"
)

var appointmentIDPattern = regexp.MustCompile(`^C-\d{4}-\d{4}-\d{4}-[0-9A-Z]{4}$`)

func TestGenerateAppointmentID_Format(t *testing.T) {
	ts := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	id := GenerateAppointmentID(ts, time.UTC)
	if !appointmentIDPattern.MatchString(id) {
		t.Errorf("unexpected appointment id format: %s", id)
	}
	if got := id[:len("C-2026-0902-1000")]; got != "C-2026-0902-1000" {
		t.Errorf("expected timestamp prefix C-2026-0902-1000, got %s", got)
	}
}

func TestGenerateAppointmentID_UsesLocation(t *testing.T) {
	ts := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	loc := time.FixedZone("plus2", 2*3600)
	id := GenerateAppointmentID(ts, loc)
	if got := id[:len("C-2026-0902-1200")]; got != "C-2026-0902-1200" {
		t.Errorf("expected local-time prefix C-2026-0902-1200, got %s", got)
	}
}

func TestGenerateAppointmentID_NoCollisionsInBoundedRun(t *testing.T) {
	// With a fixed timestamp only the 4-character suffix disambiguates; a
	// collision within a run this small signals a broken generator rather
	// than bad luck.
	ts := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateAppointmentID(ts, time.UTC)
		if seen[id] {
			t.Fatalf("duplicate appointment id after %d draws: %s", i+1, id)
		}
		seen[id] = true
	}
}

func TestGenerateUpperAlphaNumeric(t *testing.T) {
	s := GenerateUpperAlphaNumeric(8)
	if len(s) != 8 {
		t.Fatalf("expected length 8, got %d", len(s))
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')) {
			t.Errorf("unexpected character %q in %s", c, s)
		}
	}
	if GenerateUpperAlphaNumeric(0) != "" {
		t.Error("expected empty string for zero length")
	}
	if GenerateUpperAlphaNumeric(-3) != "" {
		t.Error("expected empty string for negative length")
	}
}

func TestBackupTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 5, 3, 0, 30, 0, time.UTC)
	if got := BackupTimestamp(ts); got != "20260105-030030" {
		t.Errorf("expected 20260105-030030, got %s", got)
	}
}
