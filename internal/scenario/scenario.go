package scenario

import (
	"fmt"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/fraud"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/grocery"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/sdr"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/wellness"
)

// Scenario bundles everything one agent variant needs: a system prompt and
// the tools its conversation may invoke.
type Scenario struct {
	Name         string
	Instructions string
	Tools        []agent.Tool
}

// Deps carries the shared stores and read-only reference data. Reference
// data is loaded once at startup and passed in explicitly; scenarios never
// read ambient file paths themselves.
type Deps struct {
	WellnessLog *wellness.Log
	Catalog     grocery.Catalog
	Recipes     grocery.RecipeBook
	Orders      *grocery.OrderRepository
	Personas    []sdr.Persona
	Leads       *sdr.LeadBook
	FraudRepo   *fraud.Repository
}

// Names lists the available scenario names.
func Names() []string {
	return []string{"wellness", "grocery", "sdr", "fraud", "gamemaster"}
}

// Build constructs a fresh scenario instance. Session-scoped state (cart,
// verification dialogue, scene notes) is created here, so every call gets
// its own.
func Build(name string, deps Deps) (Scenario, error) {
	switch name {
	case "wellness":
		return Wellness(deps.WellnessLog), nil
	case "grocery":
		return Grocery(deps.Catalog, deps.Recipes, deps.Orders), nil
	case "sdr":
		return SDR(deps.Personas, deps.Leads), nil
	case "fraud":
		return Fraud(deps.FraudRepo), nil
	case "gamemaster":
		return GameMaster(), nil
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", name)
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numberProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}
