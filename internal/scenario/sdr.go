package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/sdr"
)

const sdrInstructions = `You are a sales development representative on an outbound voice call.
Introduce yourself, learn who the prospect is and what they need.
Early in the call, pass their stated role and need to detect_persona and adapt
your pitch to the returned persona. Before ending the call, confirm their name
and company and call capture_lead. Stay brief, warm, and never pushy.`

// SDR builds the sales-development-rep agent.
func SDR(personas []sdr.Persona, leads *sdr.LeadBook) Scenario {
	// The detected persona is remembered so capture_lead can default to it.
	var detected string

	detectPersona := agent.Tool{
		Name:        "detect_persona",
		Description: "Classify the prospect from their stated role and need.",
		Schema: objectSchema(map[string]any{
			"statement": stringProp("What the prospect said about their role or need"),
		}, "statement"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Statement string `json:"statement"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the statement, please try again.", nil
			}
			p, ok := sdr.DetectPersona(in.Statement, personas)
			if !ok {
				return "No persona matched; treat the prospect as a generalist.", nil
			}
			detected = p.Name
			return fmt.Sprintf("Persona: %s.", p.Name), nil
		},
	}

	captureLead := agent.Tool{
		Name:        "capture_lead",
		Description: "Record the prospect as a lead.",
		Schema: objectSchema(map[string]any{
			"name":    stringProp("Prospect's name"),
			"company": stringProp("Prospect's company"),
			"need":    stringProp("What they said they need"),
			"persona": stringProp("Detected persona, if known"),
		}, "name"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Name    string `json:"name"`
				Company string `json:"company"`
				Need    string `json:"need"`
				Persona string `json:"persona"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the lead details, please try again.", nil
			}
			if strings.TrimSpace(in.Name) == "" {
				return "I need at least the prospect's name to capture the lead.", nil
			}
			persona := in.Persona
			if persona == "" {
				persona = detected
			}
			if _, err := leads.Capture(in.Name, in.Company, in.Need, persona); err != nil {
				return "", err
			}
			return fmt.Sprintf("Lead captured for %s.", in.Name), nil
		},
	}

	return Scenario{Name: "sdr", Instructions: sdrInstructions, Tools: []agent.Tool{detectPersona, captureLead}}
}
