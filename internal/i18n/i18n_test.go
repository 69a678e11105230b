package i18n

import (
	"strings"
	"testing"
	"time"

	"citabot/internal/models"
)

func TestText_FallsBackToDefaultLanguage(t *testing.T) {
	got := Text(KeyConsent, "fr")
	want := Text(KeyConsent, "es")
	if got != want {
		t.Errorf("expected fallback to Spanish, got %q", got)
	}
}

func TestText_UnknownKeyReturnsKey(t *testing.T) {
	if got := Text(Key("bogus"), "es"); got != "bogus" {
		t.Errorf("expected raw key, got %q", got)
	}
}

func TestQuickReplies_LanguagePromptHasThreeOptions(t *testing.T) {
	qr := QuickReplies(KeyLanguagePrompt, "es")
	if len(qr) != 3 {
		t.Fatalf("expected 3 language options, got %d", len(qr))
	}
	want := []string{"Español", "Deutsch", "English"}
	for i, label := range want {
		if qr[i] != label {
			t.Errorf("option %d: expected %q, got %q", i, label, qr[i])
		}
	}
}

func TestQuickReplies_ReturnsCopy(t *testing.T) {
	qr := QuickReplies(KeyManagementMenu, "es")
	qr[0] = "mutated"
	if QuickReplies(KeyManagementMenu, "es")[0] == "mutated" {
		t.Error("QuickReplies exposed internal slice")
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		in   string
		lang string
		ok   bool
	}{
		{"Español", "es", true},
		{"  deutsch ", "de", true},
		{"English", "en", true},
		{"en", "en", true},
		{"quiero continuar en castellano", "es", true},
		{"bonjour", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		lang, ok := DetectLanguage(c.in)
		if lang != c.lang || ok != c.ok {
			t.Errorf("DetectLanguage(%q) = (%q, %v), want (%q, %v)", c.in, lang, ok, c.lang, c.ok)
		}
	}
}

func TestClassifyYesNo_NegativeWinsOverAffirmative(t *testing.T) {
	// "no confirmo" contains both a negative and an affirmative keyword.
	if got := ClassifyYesNo("no confirmo", "es"); got != IntentNegative {
		t.Errorf("expected IntentNegative, got %v", got)
	}
}

func TestClassifyYesNo(t *testing.T) {
	cases := []struct {
		msg  string
		lang string
		want Intent
	}{
		{"Sí, acepto", "es", IntentAffirmative},
		{"JA", "de", IntentAffirmative},
		{"yes please", "en", IntentAffirmative},
		{"Nein", "de", IntentNegative},
		{"nope", "en", IntentNegative},
		{"quizás", "es", IntentUnknown},
		{"", "es", IntentUnknown},
	}
	for _, c := range cases {
		if got := ClassifyYesNo(c.msg, c.lang); got != c.want {
			t.Errorf("ClassifyYesNo(%q, %s) = %v, want %v", c.msg, c.lang, got, c.want)
		}
	}
}

func TestClassifyManagement(t *testing.T) {
	cases := []struct {
		msg  string
		lang string
		want ManagementAction
	}{
		{"Cancelar", "es", ActionCancel},
		{"quiero reprogramar la cita", "es", ActionReschedule},
		{"Status", "de", ActionStatus},
		{"Terminar", "es", ActionComplete},
		{"Finish", "en", ActionComplete},
		{"banana", "es", ActionNone},
	}
	for _, c := range cases {
		if got := ClassifyManagement(c.msg, c.lang); got != c.want {
			t.Errorf("ClassifyManagement(%q, %s) = %v, want %v", c.msg, c.lang, got, c.want)
		}
	}
}

func TestIsDeleteCommand(t *testing.T) {
	for _, msg := range []string{"/borrar", "/BORRAR ya", "  /delete", "/löschen", "/loeschen"} {
		if !IsDeleteCommand(msg) {
			t.Errorf("expected %q to be a delete command", msg)
		}
	}
	for _, msg := range []string{"borrar", "delete my data", "/start"} {
		if IsDeleteCommand(msg) {
			t.Errorf("did not expect %q to be a delete command", msg)
		}
	}
}

func TestFormatSlot(t *testing.T) {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC) // a Monday
	slot := models.Slot{Start: start, End: start.Add(2 * time.Hour)}

	if got := FormatSlot(slot, "es", time.UTC); got != "lun 07/09 10:00-12:00" {
		t.Errorf("es label: got %q", got)
	}
	if got := FormatSlot(slot, "de", time.UTC); got != "Mo 07/09 10:00-12:00" {
		t.Errorf("de label: got %q", got)
	}
	if got := FormatSlot(slot, "fr", time.UTC); !strings.HasPrefix(got, "lun") {
		t.Errorf("expected Spanish fallback for unknown language, got %q", got)
	}
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if got := FormatDateTime(ts, "en", time.UTC); got != "Mon 07/09/2026 10:00" {
		t.Errorf("got %q", got)
	}
}

func TestIsSupportedLanguage(t *testing.T) {
	for _, lang := range SupportedLanguages {
		if !IsSupportedLanguage(lang) {
			t.Errorf("expected %s to be supported", lang)
		}
	}
	if IsSupportedLanguage("fr") {
		t.Error("fr must not be supported")
	}
}
