package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/wellness"
)

const wellnessInstructions = `You are a daily health and wellness voice companion.
When a new session begins, greet the user immediately and start a gentle check-in.
Ask about mood, energy, and what they want to focus on today.
Keep responses grounded, supportive, and non-clinical.
Your job each session:
- Ask how the user feels today.
- Ask about energy levels.
- Ask for 1-3 simple goals for the day.
- Recap what they said.
- Then call the tool save_checkin(mood, energy, goals, summary).
After calling the tool, give a brief friendly closing message.`

// Wellness builds the daily check-in companion. The most recent persisted
// check-in seeds the greeting.
func Wellness(logStore *wellness.Log) Scenario {
	instructions := wellnessInstructions
	if last, ok := logStore.Last(); ok {
		instructions += fmt.Sprintf(
			"\nLast time, the user reported feeling %q with energy %q. Reference this gently when beginning today's check-in.",
			last.Mood, last.Energy)
	}

	saveCheckin := agent.Tool{
		Name:        "save_checkin",
		Description: "Save a daily health and wellness check-in.",
		Schema: objectSchema(map[string]any{
			"mood":    stringProp("How the user feels today, in their words"),
			"energy":  stringProp("The user's energy level"),
			"goals":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "1-3 simple goals for the day"},
			"summary": stringProp("A one-sentence recap of the check-in"),
		}, "mood", "energy", "summary"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Mood    string   `json:"mood"`
				Energy  string   `json:"energy"`
				Goals   []string `json:"goals"`
				Summary string   `json:"summary"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the check-in details, please try again.", nil
			}
			if strings.TrimSpace(in.Mood) == "" {
				return "I still need to know how the user is feeling before saving.", nil
			}
			if _, err := logStore.Append(in.Mood, in.Energy, in.Goals, in.Summary); err != nil {
				return "", err
			}
			return "saved", nil
		},
	}

	return Scenario{Name: "wellness", Instructions: instructions, Tools: []agent.Tool{saveCheckin}}
}
