package datastore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"citabot/internal/models"
)

// Export formats accepted by ExportData.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportData renders the filtered appointment set in the requested format and
// returns the payload plus its content type.
func (m *Manager) ExportData(format string, f models.AppointmentFilters) ([]byte, string, error) {
	m.mu.Lock()
	appointments := m.filteredLocked(f)
	conversations := m.sortedConversationsLocked()
	stats := m.statsLocked()
	m.mu.Unlock()

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(appointments, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal export: %w", err)
		}
		return data, "application/json", nil
	case FormatCSV:
		data, err := exportCSV(appointments, m)
		if err != nil {
			return nil, "", err
		}
		return data, "text/csv", nil
	case FormatXLSX:
		wb, err := renderWorkbook(appointments, conversations, stats, m.loc)
		if err != nil {
			return nil, "", err
		}
		defer wb.Close()
		buf, err := wb.WriteToBuffer()
		if err != nil {
			return nil, "", fmt.Errorf("failed to render workbook export: %w", err)
		}
		return buf.Bytes(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return nil, "", fmt.Errorf("%w: %s", models.ErrInvalidExportFormat, format)
	}
}

func exportCSV(appointments []models.Appointment, m *Manager) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(appointmentHeaders); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	for _, a := range appointments {
		record := []string{
			a.ID, a.SessionID, a.CustomerName, a.Phone,
			formatTime(a.StartTime, m.loc), formatTime(a.EndTime, m.loc),
			a.Technician, a.Zone, string(a.Status), a.Language,
			formatTime(a.CreatedAt, m.loc), formatTime(a.UpdatedAt, m.loc),
			strconv.FormatBool(a.ReminderEnabled), a.Notes,
			formatTimePtr(a.CancelledAt, m.loc), a.CancellationReason,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write export record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}
	return buf.Bytes(), nil
}
