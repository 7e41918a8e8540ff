package sdr

import (
	"strings"
	"unicode"
)

// Persona is a coarse user-role classification used to steer the pitch.
type Persona struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// DefaultPersonas covers the roles the demo pitch differentiates.
func DefaultPersonas() []Persona {
	return []Persona{
		{Name: "engineer", Keywords: []string{"engineer", "developer", "code", "build", "technical", "api", "integration"}},
		{Name: "founder", Keywords: []string{"founder", "startup", "ceo", "company", "growth", "raise", "product"}},
		{Name: "operations", Keywords: []string{"operations", "ops", "process", "workflow", "team", "manage", "logistics"}},
		{Name: "sales", Keywords: []string{"sales", "pipeline", "quota", "leads", "outreach", "deals", "prospect"}},
	}
}

// DetectPersona classifies a stated role/need by keyword overlap count.
// The persona with the most keyword hits wins; ties break toward the earlier
// persona in the slice. Zero hits yields ("", false).
func DetectPersona(text string, personas []Persona) (Persona, bool) {
	words := map[string]bool{}
	for _, w := range tokenize(text) {
		words[w] = true
	}

	var best Persona
	bestHits := 0
	for _, p := range personas {
		hits := 0
		for _, kw := range p.Keywords {
			if words[strings.ToLower(kw)] {
				hits++
			}
		}
		if hits > bestHits {
			best = p
			bestHits = hits
		}
	}
	return best, bestHits > 0
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(f))
	}
	return out
}
