// Package i18n holds the static message catalog for the booking script.
//
// Messages are resolved by (key, language) with fallback to the default
// language. The catalog is fixed at compile time; the conversation engine never
// produces text that is not in these tables.
package i18n

import (
	"fmt"
	"time"

	"citabot/internal/models"
)

// DefaultLanguage is used when a session has not picked a language yet and as
// the fallback for missing translations.
const DefaultLanguage = "es"

// SupportedLanguages is the closed set of selectable languages.
var SupportedLanguages = []string{"es", "de", "en"}

// IsSupportedLanguage reports whether lang is in the closed language set.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Key identifies a catalog message.
type Key string

const (
	KeyLanguagePrompt      Key = "language_prompt"
	KeyConsent             Key = "consent"
	KeyConsentRetry        Key = "consent_retry"
	KeySlotsPrompt         Key = "slots_prompt"
	KeySlotsEmpty          Key = "slots_empty"
	KeySlotRetry           Key = "slot_retry"
	KeyConfirmPrompt       Key = "confirm_prompt"
	KeyConfirmRetry        Key = "confirm_retry"
	KeyReminderPrompt      Key = "reminder_prompt"
	KeyReminderOn          Key = "reminder_on"
	KeyReminderOff         Key = "reminder_off"
	KeyManagementMenu      Key = "management_menu"
	KeyManagementStatus    Key = "management_status"
	KeyManagementCancelled Key = "management_cancelled"
	KeyManagementResched   Key = "management_rescheduled"
	KeyManagementUnknown   Key = "management_unknown"
	KeyNoAppointment       Key = "no_appointment"
	KeyGoodbye             Key = "goodbye"
	KeyDataDeleted         Key = "data_deleted"
	KeyTimeout             Key = "timeout"
	KeyErrorRetry          Key = "error_retry"
	KeyErrorMax            Key = "error_max"
	KeyReminderSMS         Key = "reminder_sms"
)

// messages maps key -> language -> display text. The language prompt is
// intentionally trilingual since no language is known yet at that point.
var messages = map[Key]map[string]string{
	KeyLanguagePrompt: {
		"es": "¡Hola! Soy el asistente de citas para la instalación de fibra.\nPor favor, elige tu idioma / Bitte wähle deine Sprache / Please choose your language:",
	},
	KeyConsent: {
		"es": "Para gestionar tu cita necesito tratar tus datos de contacto. ¿Aceptas el tratamiento de tus datos? (Escribe /borrar en cualquier momento para eliminar tus datos.)",
		"de": "Um deinen Termin zu verwalten, muss ich deine Kontaktdaten verarbeiten. Bist du mit der Verarbeitung deiner Daten einverstanden? (Schreibe jederzeit /borrar, um deine Daten zu löschen.)",
		"en": "To manage your appointment I need to process your contact details. Do you consent to the processing of your data? (Type /borrar at any time to delete your data.)",
	},
	KeyConsentRetry: {
		"es": "No te he entendido. Por favor, responde Sí o No.",
		"de": "Das habe ich nicht verstanden. Bitte antworte mit Ja oder Nein.",
		"en": "I didn't catch that. Please answer Yes or No.",
	},
	KeySlotsPrompt: {
		"es": "Estas son las próximas citas disponibles para la instalación. Elige una opción:",
		"de": "Dies sind die nächsten verfügbaren Installationstermine. Wähle eine Option:",
		"en": "These are the next available installation slots. Pick an option:",
	},
	KeySlotsEmpty: {
		"es": "Ahora mismo no hay citas disponibles. Inténtalo de nuevo más tarde.",
		"de": "Derzeit sind keine Termine verfügbar. Bitte versuche es später erneut.",
		"en": "There are no slots available right now. Please try again later.",
	},
	KeySlotRetry: {
		"es": "No he reconocido esa opción. Por favor, elige una de las citas mostradas:",
		"de": "Diese Option habe ich nicht erkannt. Bitte wähle einen der angezeigten Termine:",
		"en": "I didn't recognize that option. Please pick one of the slots shown:",
	},
	KeyConfirmPrompt: {
		"es": "Has elegido: %s. ¿Confirmo la cita?",
		"de": "Du hast gewählt: %s. Soll ich den Termin bestätigen?",
		"en": "You picked: %s. Shall I confirm the appointment?",
	},
	KeyConfirmRetry: {
		"es": "¿Confirmo la cita? Responde Sí o No.",
		"de": "Soll ich den Termin bestätigen? Antworte mit Ja oder Nein.",
		"en": "Shall I confirm the appointment? Answer Yes or No.",
	},
	KeyReminderPrompt: {
		"es": "¡Cita confirmada! Tu número de cita es %s y te atenderá %s. ¿Quieres recibir un recordatorio el día anterior?",
		"de": "Termin bestätigt! Deine Terminnummer ist %s, dein Techniker ist %s. Möchtest du am Vortag eine Erinnerung erhalten?",
		"en": "Appointment confirmed! Your booking number is %s and your technician is %s. Would you like a reminder the day before?",
	},
	KeyReminderOn: {
		"es": "Perfecto, te enviaré un recordatorio.",
		"de": "Perfekt, ich schicke dir eine Erinnerung.",
		"en": "Great, I'll send you a reminder.",
	},
	KeyReminderOff: {
		"es": "De acuerdo, sin recordatorio.",
		"de": "In Ordnung, keine Erinnerung.",
		"en": "Alright, no reminder.",
	},
	KeyManagementMenu: {
		"es": "¿Qué quieres hacer con tu cita?",
		"de": "Was möchtest du mit deinem Termin tun?",
		"en": "What would you like to do with your appointment?",
	},
	KeyManagementStatus: {
		"es": "Tu cita %s está programada para el %s con %s (estado: %s).",
		"de": "Dein Termin %s ist für den %s mit %s geplant (Status: %s).",
		"en": "Your appointment %s is scheduled for %s with %s (status: %s).",
	},
	KeyManagementCancelled: {
		"es": "Tu cita %s ha sido cancelada.",
		"de": "Dein Termin %s wurde storniert.",
		"en": "Your appointment %s has been cancelled.",
	},
	KeyManagementResched: {
		"es": "He registrado tu solicitud de cambio. Un agente te llamará para confirmar la nueva fecha.",
		"de": "Ich habe deine Änderungsanfrage notiert. Ein Mitarbeiter ruft dich an, um den neuen Termin zu bestätigen.",
		"en": "I've noted your reschedule request. An agent will call you to confirm the new date.",
	},
	KeyManagementUnknown: {
		"es": "No te he entendido. Puedes reprogramar, cancelar, consultar el estado o terminar.",
		"de": "Das habe ich nicht verstanden. Du kannst verschieben, stornieren, den Status prüfen oder beenden.",
		"en": "I didn't catch that. You can reschedule, cancel, check the status or finish.",
	},
	KeyNoAppointment: {
		"es": "No encuentro ninguna cita activa en esta conversación.",
		"de": "Ich finde keinen aktiven Termin in dieser Unterhaltung.",
		"en": "I can't find an active appointment in this conversation.",
	},
	KeyGoodbye: {
		"es": "¡Gracias! Si necesitas algo más, escribe /start. ¡Hasta pronto!",
		"de": "Danke! Wenn du noch etwas brauchst, schreibe /start. Bis bald!",
		"en": "Thank you! If you need anything else, type /start. See you soon!",
	},
	KeyDataDeleted: {
		"es": "Tus datos han sido eliminados. La conversación ha terminado.",
		"de": "Deine Daten wurden gelöscht. Die Unterhaltung ist beendet.",
		"en": "Your data has been deleted. The conversation has ended.",
	},
	KeyTimeout: {
		"es": "La sesión ha caducado por inactividad. Escribe /start para empezar de nuevo.",
		"de": "Die Sitzung ist wegen Inaktivität abgelaufen. Schreibe /start, um neu zu beginnen.",
		"en": "The session has expired due to inactivity. Type /start to begin again.",
	},
	KeyErrorRetry: {
		"es": "Algo ha salido mal. Por favor, inténtalo de nuevo.",
		"de": "Etwas ist schiefgelaufen. Bitte versuche es noch einmal.",
		"en": "Something went wrong. Please try again.",
	},
	KeyErrorMax: {
		"es": "Lo siento, no consigo procesar tu solicitud. Por favor, llama a nuestro teléfono de atención. La conversación ha terminado.",
		"de": "Es tut mir leid, ich kann deine Anfrage nicht verarbeiten. Bitte ruf unsere Hotline an. Die Unterhaltung ist beendet.",
		"en": "I'm sorry, I can't process your request. Please call our support line. The conversation has ended.",
	},
	KeyReminderSMS: {
		"es": "Recordatorio: tu cita de instalación de fibra %s es el %s. Técnico: %s.",
		"de": "Erinnerung: dein Glasfaser-Installationstermin %s ist am %s. Techniker: %s.",
		"en": "Reminder: your fiber installation appointment %s is on %s. Technician: %s.",
	},
}

// quickReplies maps key -> language -> suggested response labels.
var quickReplies = map[Key]map[string][]string{
	KeyLanguagePrompt: {
		"es": {"Español", "Deutsch", "English"},
	},
	KeyConsent: {
		"es": {"Sí, acepto", "No"},
		"de": {"Ja, einverstanden", "Nein"},
		"en": {"Yes, I consent", "No"},
	},
	KeyConfirmPrompt: {
		"es": {"Sí", "No"},
		"de": {"Ja", "Nein"},
		"en": {"Yes", "No"},
	},
	KeyReminderPrompt: {
		"es": {"Sí", "No"},
		"de": {"Ja", "Nein"},
		"en": {"Yes", "No"},
	},
	KeyManagementMenu: {
		"es": {"Reprogramar", "Cancelar", "Estado", "Terminar"},
		"de": {"Verschieben", "Stornieren", "Status", "Beenden"},
		"en": {"Reschedule", "Cancel", "Status", "Finish"},
	},
}

// Text resolves a message by key and language, falling back to the default
// language when the translation is missing.
func Text(key Key, lang string) string {
	byLang, ok := messages[key]
	if !ok {
		return string(key)
	}
	if msg, ok := byLang[lang]; ok {
		return msg
	}
	return byLang[DefaultLanguage]
}

// Textf resolves a message and applies fmt-style arguments.
func Textf(key Key, lang string, args ...interface{}) string {
	return fmt.Sprintf(Text(key, lang), args...)
}

// QuickReplies resolves the quick-reply labels for a message key, falling back
// to the default language. Returns nil when the key carries no options.
func QuickReplies(key Key, lang string) []string {
	byLang, ok := quickReplies[key]
	if !ok {
		return nil
	}
	if qr, ok := byLang[lang]; ok {
		return append([]string(nil), qr...)
	}
	return append([]string(nil), byLang[DefaultLanguage]...)
}

// weekdayNames holds per-language weekday abbreviations indexed by time.Weekday.
var weekdayNames = map[string][7]string{
	"es": {"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
	"de": {"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
	"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
}

// FormatSlot renders a slot as a compact human label, e.g. "lun 02/09 10:00-12:00".
func FormatSlot(slot models.Slot, lang string, loc *time.Location) string {
	start := slot.Start
	end := slot.End
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	names, ok := weekdayNames[lang]
	if !ok {
		names = weekdayNames[DefaultLanguage]
	}
	return fmt.Sprintf("%s %s %s-%s",
		names[start.Weekday()],
		start.Format("02/01"),
		start.Format("15:04"),
		end.Format("15:04"))
}

// FormatDateTime renders a timestamp for status and reminder messages.
func FormatDateTime(t time.Time, lang string, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	names, ok := weekdayNames[lang]
	if !ok {
		names = weekdayNames[DefaultLanguage]
	}
	return fmt.Sprintf("%s %s %s", names[t.Weekday()], t.Format("02/01/2006"), t.Format("15:04"))
}
