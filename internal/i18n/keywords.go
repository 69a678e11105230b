package i18n

import "strings"

// Intent is the outcome of yes/no classification.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentAffirmative
	IntentNegative
)

// ManagementAction is the outcome of management-intent classification.
type ManagementAction int

const (
	ActionNone ManagementAction = iota
	ActionReschedule
	ActionCancel
	ActionStatus
	ActionComplete
)

// Keyword lists are deliberately small and matched by case-insensitive
// substring. Callers are expected to phrase responses using the quick-reply
// labels; this is a heuristic, not language understanding. Swap these
// functions out to plug in a real NLU backend without touching the engine.
var affirmativeWords = map[string][]string{
	"es": {"sí", "si", "vale", "claro", "acepto", "confirmo", "ok"},
	"de": {"ja", "gerne", "klar", "einverstanden", "bestätigen", "ok"},
	"en": {"yes", "yeah", "sure", "consent", "confirm", "ok"},
}

var negativeWords = map[string][]string{
	"es": {"no", "nunca", "rechazo"},
	"de": {"nein", "nicht", "kein"},
	"en": {"no", "nope", "don't"},
}

var rescheduleWords = map[string][]string{
	"es": {"reprogramar", "cambiar", "mover", "otra fecha"},
	"de": {"verschieben", "ändern", "anderes datum"},
	"en": {"reschedule", "change", "move", "another date"},
}

var cancelWords = map[string][]string{
	"es": {"cancelar", "anular"},
	"de": {"stornieren", "absagen"},
	"en": {"cancel"},
}

var statusWords = map[string][]string{
	"es": {"estado", "consultar", "ver cita"},
	"de": {"status", "prüfen"},
	"en": {"status", "check"},
}

var completeWords = map[string][]string{
	"es": {"terminar", "finalizar", "salir", "adiós", "adios"},
	"de": {"beenden", "fertig", "tschüss"},
	"en": {"finish", "done", "exit", "bye"},
}

// languageLabels maps selectable labels and codes to language codes.
var languageLabels = map[string]string{
	"español": "es", "espanol": "es", "castellano": "es", "es": "es",
	"deutsch": "de", "german": "de", "alemán": "de", "aleman": "de", "de": "de",
	"english": "en", "inglés": "en", "ingles": "en", "englisch": "en", "en": "en",
}

func containsAny(msg string, words []string) bool {
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

func wordsFor(table map[string][]string, lang string) []string {
	if w, ok := table[lang]; ok {
		return w
	}
	return table[DefaultLanguage]
}

// ClassifyYesNo classifies a message as affirmative, negative or unknown for
// the given language. Negative words are checked first so that phrasings like
// "no confirmo" are not read as agreement.
func ClassifyYesNo(message, lang string) Intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return IntentUnknown
	}
	if containsAny(msg, wordsFor(negativeWords, lang)) {
		return IntentNegative
	}
	if containsAny(msg, wordsFor(affirmativeWords, lang)) {
		return IntentAffirmative
	}
	return IntentUnknown
}

// ClassifyManagement classifies a message into a management action.
func ClassifyManagement(message, lang string) ManagementAction {
	msg := strings.ToLower(strings.TrimSpace(message))
	switch {
	case containsAny(msg, wordsFor(cancelWords, lang)):
		return ActionCancel
	case containsAny(msg, wordsFor(rescheduleWords, lang)):
		return ActionReschedule
	case containsAny(msg, wordsFor(statusWords, lang)):
		return ActionStatus
	case containsAny(msg, wordsFor(completeWords, lang)):
		return ActionComplete
	default:
		return ActionNone
	}
}

// DetectLanguage matches a language-selection message against the known
// labels and codes. Returns the language code and whether a match was found.
func DetectLanguage(message string) (string, bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if lang, ok := languageLabels[msg]; ok {
		return lang, true
	}
	for label, lang := range languageLabels {
		if len(label) > 2 && strings.Contains(msg, label) {
			return lang, true
		}
	}
	return "", false
}

// DeleteCommandPrefix starts the data-deletion command in any language.
const DeleteCommandPrefix = "/borrar"

// deleteAliases are accepted alternatives to the canonical delete command.
var deleteAliases = []string{"/delete", "/löschen", "/loeschen"}

// IsDeleteCommand reports whether the message invokes data deletion.
func IsDeleteCommand(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if strings.HasPrefix(msg, DeleteCommandPrefix) {
		return true
	}
	for _, alias := range deleteAliases {
		if strings.HasPrefix(msg, alias) {
			return true
		}
	}
	return false
}
