// Package slots generates bookable installation windows from a weekly
// availability template. Generation is pure: given the same inputs it yields
// the same sequence of windows, except for the random slot ids.
package slots

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"citabot/internal/models"
)

// Default generation parameters.
const (
	// DefaultSessionMaxSlots caps slot candidates offered inside a conversation.
	DefaultSessionMaxSlots = 10
	// DefaultQueryMaxSlots caps slot candidates for the general-availability query.
	DefaultQueryMaxSlots = 20
	// DefaultSlotDuration is the length of one installation window.
	DefaultSlotDuration = 2 * time.Hour
	// DefaultHorizonDays bounds how far ahead slots are generated.
	DefaultHorizonDays = 14
	// DefaultMinLeadHours is the minimum notice before the first offered slot.
	DefaultMinLeadHours = 24
)

// Config describes the weekly availability template and generation bounds.
type Config struct {
	Location     *time.Location
	WeeklyTimes  map[time.Weekday][]string // daily start times as "HH:MM"
	SlotDuration time.Duration
	HorizonDays  int
	MinLeadHours int
	MaxSlots     int
}

// DefaultConfig returns the stock availability template: weekday mornings and
// afternoons, nothing on weekends.
func DefaultConfig(loc *time.Location) Config {
	if loc == nil {
		loc = time.Local
	}
	weekdayTimes := []string{"09:00", "11:00", "13:00", "16:00", "18:00"}
	return Config{
		Location: loc,
		WeeklyTimes: map[time.Weekday][]string{
			time.Monday:    weekdayTimes,
			time.Tuesday:   weekdayTimes,
			time.Wednesday: weekdayTimes,
			time.Thursday:  weekdayTimes,
			time.Friday:    weekdayTimes,
		},
		SlotDuration: DefaultSlotDuration,
		HorizonDays:  DefaultHorizonDays,
		MinLeadHours: DefaultMinLeadHours,
		MaxSlots:     DefaultSessionMaxSlots,
	}
}

// Generate produces an ordered, deduplicated, time-ascending sequence of slot
// candidates. Every candidate starts strictly after now+minLead and before
// now+horizon; end = start + duration. A weekday with no configured times
// contributes nothing, but the day cursor still advances one day at a time.
func Generate(now time.Time, cfg Config) ([]models.Slot, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	duration := cfg.SlotDuration
	if duration <= 0 {
		duration = DefaultSlotDuration
	}
	maxSlots := cfg.MaxSlots
	if maxSlots <= 0 {
		maxSlots = DefaultSessionMaxSlots
	}

	localNow := now.In(loc)
	earliest := localNow.Add(time.Duration(cfg.MinLeadHours) * time.Hour)
	horizon := localNow.AddDate(0, 0, cfg.HorizonDays)

	var candidates []models.Slot
	seen := make(map[string]struct{})

	for cursor := localNow; !cursor.After(horizon); cursor = cursor.AddDate(0, 0, 1) {
		times := cfg.WeeklyTimes[cursor.Weekday()]
		for _, hhmm := range times {
			parsed, err := time.ParseInLocation("15:04", hhmm, loc)
			if err != nil {
				return nil, fmt.Errorf("invalid template time %q: %w", hhmm, err)
			}
			start := time.Date(cursor.Year(), cursor.Month(), cursor.Day(),
				parsed.Hour(), parsed.Minute(), 0, 0, loc)
			if !start.After(earliest) || !start.Before(horizon) {
				continue
			}
			key := start.Format(time.RFC3339)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			candidates = append(candidates, models.Slot{
				ID:        uuid.NewString(),
				Start:     start,
				End:       start.Add(duration),
				Available: true,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	if len(candidates) > maxSlots {
		candidates = candidates[:maxSlots]
	}
	return candidates, nil
}
