package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
)

const gameMasterInstructions = `You are the game master of a short improvised fantasy adventure
played over a voice call. Set scenes vividly but briefly, let the player decide,
and keep the story moving. When an action's outcome is uncertain, call roll_dice
and narrate the result. Use note_scene to remember important story beats and
recall_scenes when you need to stay consistent with what already happened.
Nothing is persisted between calls; each adventure is self-contained.`

// GameMaster builds the tabletop game-master agent. Scene notes are
// session-scoped only.
func GameMaster() Scenario {
	var scenes []string
	roll := func(sides int) int { return rand.Intn(sides) + 1 }

	rollDice := agent.Tool{
		Name:        "roll_dice",
		Description: "Roll count dice with the given number of sides (e.g. 2 d6).",
		Schema: objectSchema(map[string]any{
			"count": numberProp("How many dice, default 1"),
			"sides": numberProp("Sides per die, default 20"),
		}),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Count int `json:"count"`
				Sides int `json:"sides"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the dice request, please try again.", nil
			}
			if in.Count < 1 {
				in.Count = 1
			}
			if in.Count > 20 {
				return "That is too many dice; twenty is the limit.", nil
			}
			if in.Sides < 2 {
				in.Sides = 20
			}
			total := 0
			rolls := make([]string, 0, in.Count)
			for i := 0; i < in.Count; i++ {
				r := roll(in.Sides)
				total += r
				rolls = append(rolls, fmt.Sprintf("%d", r))
			}
			return fmt.Sprintf("Rolled %dd%d: %s (total %d).", in.Count, in.Sides, strings.Join(rolls, ", "), total), nil
		},
	}

	noteScene := agent.Tool{
		Name:        "note_scene",
		Description: "Remember a story beat for the rest of this adventure.",
		Schema: objectSchema(map[string]any{
			"note": stringProp("The story beat to remember"),
		}, "note"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Note string `json:"note"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the note, please try again.", nil
			}
			if strings.TrimSpace(in.Note) == "" {
				return "There was nothing to note.", nil
			}
			scenes = append(scenes, in.Note)
			return fmt.Sprintf("Noted (%d beats so far).", len(scenes)), nil
		},
	}

	recallScenes := agent.Tool{
		Name:        "recall_scenes",
		Description: "List the story beats noted so far this adventure.",
		Schema:      objectSchema(map[string]any{}),
		Handler: func(ctx context.Context, args string) (string, error) {
			if len(scenes) == 0 {
				return "No story beats noted yet.", nil
			}
			return "Story so far: " + strings.Join(scenes, " | "), nil
		},
	}

	return Scenario{Name: "gamemaster", Instructions: gameMasterInstructions, Tools: []agent.Tool{rollDice, noteScene, recallScenes}}
}
