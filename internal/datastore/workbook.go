package datastore

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"citabot/internal/models"
)

// Sheet names in the persisted workbook.
const (
	SheetAppointments  = "Citas"
	SheetConversations = "Conversaciones"
	SheetStats         = "Estadísticas"
)

const workbookTimeLayout = "2006-01-02 15:04"

var appointmentHeaders = []string{
	"ID", "Sesión", "Cliente", "Teléfono", "Inicio", "Fin", "Técnico", "Zona",
	"Estado", "Idioma", "Creada", "Actualizada", "Recordatorio", "Notas",
	"Cancelada", "Motivo cancelación",
}

var conversationHeaders = []string{
	"Sesión", "Inicio", "Fin", "Duración (min)", "Idioma", "Mensajes",
	"Completada", "Estado final", "Cita",
}

// renderWorkbook builds the three-sheet workbook from the given collections.
// Callers own the returned file and must Close it.
func renderWorkbook(appointments []models.Appointment, conversations []models.ConversationSummary, stats models.DataStats, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetAppointments)
	if _, err := f.NewSheet(SheetConversations); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", SheetConversations, err)
	}
	if _, err := f.NewSheet(SheetStats); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", SheetStats, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeAppointmentSheet(f, headerStyle, appointments, loc); err != nil {
		return nil, err
	}
	if err := writeConversationSheet(f, headerStyle, conversations, loc); err != nil {
		return nil, err
	}
	if err := writeStatsSheet(f, headerStyle, stats, loc); err != nil {
		return nil, err
	}
	return f, nil
}

func writeHeaderRow(f *excelize.File, sheet string, style int, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(workbookTimeLayout)
}

func formatTimePtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return formatTime(*t, loc)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

func writeAppointmentSheet(f *excelize.File, style int, appointments []models.Appointment, loc *time.Location) error {
	if err := writeHeaderRow(f, SheetAppointments, style, appointmentHeaders); err != nil {
		return fmt.Errorf("failed to write appointment headers: %w", err)
	}
	for i, a := range appointments {
		row := []interface{}{
			a.ID, a.SessionID, a.CustomerName, a.Phone,
			formatTime(a.StartTime, loc), formatTime(a.EndTime, loc),
			a.Technician, a.Zone, string(a.Status), a.Language,
			formatTime(a.CreatedAt, loc), formatTime(a.UpdatedAt, loc),
			yesNo(a.ReminderEnabled), a.Notes,
			formatTimePtr(a.CancelledAt, loc), a.CancellationReason,
		}
		if err := setRow(f, SheetAppointments, i+2, row); err != nil {
			return fmt.Errorf("failed to write appointment row: %w", err)
		}
	}
	return nil
}

func writeConversationSheet(f *excelize.File, style int, conversations []models.ConversationSummary, loc *time.Location) error {
	if err := writeHeaderRow(f, SheetConversations, style, conversationHeaders); err != nil {
		return fmt.Errorf("failed to write conversation headers: %w", err)
	}
	for i, c := range conversations {
		row := []interface{}{
			c.SessionID, formatTime(c.StartTime, loc), formatTime(c.EndTime, loc),
			c.DurationMinutes, c.Language, c.MessageCount,
			yesNo(c.Completed), string(c.FinalState), c.AppointmentID,
		}
		if err := setRow(f, SheetConversations, i+2, row); err != nil {
			return fmt.Errorf("failed to write conversation row: %w", err)
		}
	}
	return nil
}

func writeStatsSheet(f *excelize.File, style int, stats models.DataStats, loc *time.Location) error {
	if err := writeHeaderRow(f, SheetStats, style, []string{"Métrica", "Valor"}); err != nil {
		return fmt.Errorf("failed to write stats headers: %w", err)
	}
	rows := [][]interface{}{
		{"Citas totales", stats.TotalAppointments},
		{"Recordatorios activos", stats.RemindersEnabled},
	}
	statuses := make([]string, 0, len(stats.ByStatus))
	for s := range stats.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		rows = append(rows, []interface{}{"Citas " + s, stats.ByStatus[models.AppointmentStatus(s)]})
	}
	rows = append(rows,
		[]interface{}{"Conversaciones totales", stats.Conversations.Total},
		[]interface{}{"Conversaciones completadas", stats.Conversations.Completed},
		[]interface{}{"Conversaciones abandonadas", stats.Conversations.Abandoned},
		[]interface{}{"Mensajes por conversación", stats.Conversations.AverageMessages},
		[]interface{}{"Memoria heap (bytes)", stats.HeapAllocBytes},
		[]interface{}{"Goroutines", stats.Goroutines},
		[]interface{}{"Generado", formatTime(stats.GeneratedAt, loc)},
	)
	for i, r := range rows {
		if err := setRow(f, SheetStats, i+2, r); err != nil {
			return fmt.Errorf("failed to write stats row: %w", err)
		}
	}
	return nil
}

// writeWorkbook renders the current collections and saves the workbook to
// path. Callers hold m.mu.
func (m *Manager) writeWorkbook(path string) error {
	f, err := renderWorkbook(m.sortedAppointmentsLocked(), m.sortedConversationsLocked(), m.statsLocked(), m.loc)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (m *Manager) sortedAppointmentsLocked() []models.Appointment {
	return m.filteredLocked(models.AppointmentFilters{})
}

func (m *Manager) sortedConversationsLocked() []models.ConversationSummary {
	out := make([]models.ConversationSummary, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
