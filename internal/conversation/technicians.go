package conversation

import (
	"fmt"
	"math/rand/v2"

	"citabot/internal/models"
)

// DefaultTechnicians returns the stock installation crew. Technicians are
// static configuration; they are never mutated at runtime.
func DefaultTechnicians() []models.Technician {
	return []models.Technician{
		{ID: "T-01", Name: "Marco Vidal", Zone: "Norte", Active: true},
		{ID: "T-02", Name: "Lucía Ferrer", Zone: "Sur", Active: true},
		{ID: "T-03", Name: "Jonas Weber", Zone: "Centro", Active: true},
		{ID: "T-04", Name: "Anna Schmitt", Zone: "Este", Active: true},
		{ID: "T-05", Name: "Pau Riera", Zone: "Oeste", Active: false},
	}
}

// assignTechnician picks uniformly at random among active technicians. Zone
// data is carried onto the appointment but not used for matching.
func (e *Engine) assignTechnician() (models.Technician, error) {
	var active []models.Technician
	for _, t := range e.technicians {
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return models.Technician{}, fmt.Errorf("no active technicians configured")
	}
	return active[rand.IntN(len(active))], nil
}

// Technicians returns the configured technician pool.
func (e *Engine) Technicians() []models.Technician {
	return append([]models.Technician(nil), e.technicians...)
}

// technicianName resolves a technician id to its display name.
func (e *Engine) technicianName(id string) string {
	for _, t := range e.technicians {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}
