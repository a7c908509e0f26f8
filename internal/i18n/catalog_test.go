package i18n

import (
	"strings"
	"testing"
)

func TestCatalogLoadsEveryLanguage(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	loaded := c.Loaded()
	if len(loaded) != len(Languages) {
		t.Fatalf("loaded %d languages %v, want %d", len(loaded), loaded, len(Languages))
	}

	keys := []string{
		"eod.summary", "eod.closed", "eod.gap", "eod.corrections_ack",
		"health.check_dnd_settings", "health.check_notification_permissions",
		"health.verify_both_channels_active", "health.increase_manual_logging",
	}
	for _, lang := range Languages {
		for _, key := range keys {
			if !c.Has(lang, key) {
				t.Errorf("%s is missing %s", lang, key)
			}
		}
	}
}

func TestRender(t *testing.T) {
	c := MustNew()

	tests := []struct {
		name string
		lang string
		key  string
		vars Vars
		want string
	}{
		{
			name: "english gap",
			lang: "en",
			key:  "eod.gap",
			vars: Vars{"gap": "5,000"},
			want: "There's a ₹5,000 gap. Any cash transactions that were missed?",
		},
		{
			name: "hindi gap",
			lang: "HI",
			key:  "eod.gap",
			vars: Vars{"gap": "5,000"},
			want: "₹5,000 ka gap hai. Cash mein kuch hua jo miss ho gaya?",
		},
		{
			name: "missing key falls back to english",
			lang: "kn",
			key:  "import.doc_types.csv_export",
			want: "CSV export",
		},
		{
			name: "unknown language falls back to english",
			lang: "fr",
			key:  "eod.closed",
			want: "Today's books closed. See you tomorrow!",
		},
		{
			name: "unknown key renders as key",
			lang: "en",
			key:  "eod.nope",
			want: "eod.nope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Render(tt.lang, tt.key, tt.vars); got != tt.want {
				t.Errorf("Render(%q, %q) = %q, want %q", tt.lang, tt.key, got, tt.want)
			}
		})
	}
}

func TestFillLeavesUnknownPlaceholders(t *testing.T) {
	got := Fill("{imported} of {total} from {type}", Vars{"imported": "3", "type": "CSV export"})
	if got != "3 of {total} from CSV export" {
		t.Errorf("Fill() = %q", got)
	}
	if Fill("{x}", nil) != "{x}" {
		t.Error("nil vars should leave template untouched")
	}
}

func TestHealthTemplatesCarryPlaceholders(t *testing.T) {
	c := MustNew()
	for _, lang := range Languages {
		if msg := c.Text(lang, "health.check_dnd_settings"); !strings.Contains(msg, "{hours}") {
			t.Errorf("%s check_dnd_settings lacks {hours}: %q", lang, msg)
		}
		if msg := c.Text(lang, "health.increase_manual_logging"); !strings.Contains(msg, "{pct}") {
			t.Errorf("%s increase_manual_logging lacks {pct}: %q", lang, msg)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported("Or") || !Supported("") {
		t.Error("expected Or and empty to be supported")
	}
	if Supported("fr") {
		t.Error("fr should not be supported")
	}
}
