package sdr

import (
	"path/filepath"
	"testing"
)

func TestDetectPersona(t *testing.T) {
	personas := DefaultPersonas()
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"I'm a developer, I build API integrations all day", "engineer", true},
		{"founder of a startup, focused on growth", "founder", true},
		{"I run sales outreach and manage the pipeline", "sales", true},
		{"I like turtles", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := DetectPersona(tc.text, personas)
		if ok != tc.ok {
			t.Fatalf("%q: ok=%v want %v", tc.text, ok, tc.ok)
		}
		if ok && got.Name != tc.want {
			t.Fatalf("%q: got %q want %q", tc.text, got.Name, tc.want)
		}
	}
}

func TestDetectPersona_TieBreaksTowardEarlier(t *testing.T) {
	personas := []Persona{
		{Name: "first", Keywords: []string{"apple"}},
		{Name: "second", Keywords: []string{"apple"}},
	}
	got, ok := DetectPersona("apple", personas)
	if !ok || got.Name != "first" {
		t.Fatalf("expected tie to break toward first, got %q ok=%v", got.Name, ok)
	}
}

func TestLeadBook_CaptureAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	book := NewLeadBook(path)

	if _, err := book.Capture("Sam", "Acme", "needs automation", "operations"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if _, err := book.Capture("Ria", "Initech", "api access", "engineer"); err != nil {
		t.Fatalf("capture: %v", err)
	}

	leads := NewLeadBook(path).Leads()
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}
	if leads[0].Name != "Sam" || leads[1].Name != "Ria" {
		t.Fatalf("leads out of order: %+v", leads)
	}
}
