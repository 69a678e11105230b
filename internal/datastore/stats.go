package datastore

import (
	"runtime"
	"time"

	"citabot/internal/models"
)

// GenerateStats derives the aggregate view over the current collections,
// including process health figures.
func (m *Manager) GenerateStats() models.DataStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() models.DataStats {
	stats := models.DataStats{
		TotalAppointments: len(m.appointments),
		ByStatus:          make(map[models.AppointmentStatus]int),
		GeneratedAt:       time.Now(),
	}
	for _, a := range m.appointments {
		stats.ByStatus[a.Status]++
		if a.ReminderEnabled {
			stats.RemindersEnabled++
		}
	}

	conv := models.ConversationStats{
		Total:      len(m.conversations),
		ByLanguage: make(map[string]int),
	}
	totalMessages := 0
	for _, c := range m.conversations {
		if c.Completed {
			conv.Completed++
		} else {
			conv.Abandoned++
		}
		if c.Language != "" {
			conv.ByLanguage[c.Language]++
		}
		totalMessages += c.MessageCount
	}
	if conv.Total > 0 {
		// Rounded to the nearest whole message.
		conv.AverageMessages = (totalMessages + conv.Total/2) / conv.Total
	}
	stats.Conversations = conv

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.HeapAllocBytes = mem.HeapAlloc
	stats.Goroutines = runtime.NumGoroutine()
	return stats
}
