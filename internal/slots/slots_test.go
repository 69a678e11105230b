package slots

import (
	"testing"
	"time"
)

// fixedNow is a Wednesday at 12:00 UTC.
var fixedNow = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)

func TestGenerate_BoundsAndOrder(t *testing.T) {
	cfg := DefaultConfig(time.UTC)
	cfg.MaxSlots = 100 // lift the cap to observe the full window

	slots, err := Generate(fixedNow, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots within a 14-day horizon")
	}

	earliest := fixedNow.Add(time.Duration(cfg.MinLeadHours) * time.Hour)
	horizon := fixedNow.AddDate(0, 0, cfg.HorizonDays)
	for i, s := range slots {
		if !s.Start.After(earliest) {
			t.Errorf("slot %d starts %s, not strictly after lead bound %s", i, s.Start, earliest)
		}
		if !s.Start.Before(horizon) {
			t.Errorf("slot %d starts %s, beyond horizon %s", i, s.Start, horizon)
		}
		if got := s.End.Sub(s.Start); got != cfg.SlotDuration {
			t.Errorf("slot %d duration %s, want %s", i, got, cfg.SlotDuration)
		}
		if !s.Available {
			t.Errorf("slot %d not marked available", i)
		}
		if i > 0 && slots[i].Start.Before(slots[i-1].Start) {
			t.Errorf("slots out of order at index %d", i)
		}
	}
}

func TestGenerate_SkipsWeekends(t *testing.T) {
	cfg := DefaultConfig(time.UTC)
	cfg.MaxSlots = 100

	slots, err := Generate(fixedNow, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, s := range slots {
		if wd := s.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("slot on weekend: %s", s.Start)
		}
	}
}

func TestGenerate_RespectsCap(t *testing.T) {
	cfg := DefaultConfig(time.UTC)
	slots, err := Generate(fixedNow, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) > DefaultSessionMaxSlots {
		t.Errorf("expected at most %d slots, got %d", DefaultSessionMaxSlots, len(slots))
	}
}

func TestGenerate_UniqueStartsAndIDs(t *testing.T) {
	cfg := DefaultConfig(time.UTC)
	cfg.MaxSlots = 100
	// Duplicate template entries must not produce duplicate windows.
	cfg.WeeklyTimes[time.Thursday] = append(cfg.WeeklyTimes[time.Thursday], "09:00")

	slots, err := Generate(fixedNow, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	starts := make(map[string]bool)
	ids := make(map[string]bool)
	for _, s := range slots {
		key := s.Start.Format(time.RFC3339)
		if starts[key] {
			t.Errorf("duplicate slot start %s", key)
		}
		starts[key] = true
		if ids[s.ID] {
			t.Errorf("duplicate slot id %s", s.ID)
		}
		ids[s.ID] = true
	}
}

func TestGenerate_EmptyTemplate(t *testing.T) {
	cfg := Config{Location: time.UTC, HorizonDays: 14, MinLeadHours: 24}
	slots, err := Generate(fixedNow, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots from an empty template, got %d", len(slots))
	}
}

func TestGenerate_InvalidTemplateTime(t *testing.T) {
	cfg := DefaultConfig(time.UTC)
	cfg.WeeklyTimes[time.Monday] = []string{"25:99"}
	if _, err := Generate(fixedNow, cfg); err == nil {
		t.Error("expected error for invalid template time")
	}
}
