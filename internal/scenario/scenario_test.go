package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/fraud"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/grocery"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/sdr"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/wellness"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	orders, err := grocery.NewOrderRepository(filepath.Join(dir, "orders"))
	if err != nil {
		t.Fatalf("orders repo: %v", err)
	}
	repo := fraud.NewRepository(filepath.Join(dir, "fraud_cases.db"))
	if err := repo.Seed(fraud.SampleCases()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return Deps{
		WellnessLog: wellness.NewLog(filepath.Join(dir, "wellness_log.json")),
		Catalog: grocery.Catalog{Items: []grocery.Item{
			{Name: "milk", Price: 2.50},
			{Name: "eggs", Price: 4.25},
		}},
		Recipes:   grocery.RecipeBook{"omelette": {"eggs", "milk"}},
		Orders:    orders,
		Personas:  sdr.DefaultPersonas(),
		Leads:     sdr.NewLeadBook(filepath.Join(dir, "leads.json")),
		FraudRepo: repo,
	}
}

func tool(t *testing.T, s Scenario, name string) agent.Tool {
	t.Helper()
	for _, tl := range s.Tools {
		if tl.Name == name {
			return tl
		}
	}
	t.Fatalf("scenario %s has no tool %q", s.Name, name)
	return agent.Tool{}
}

func call(t *testing.T, tl agent.Tool, args string) string {
	t.Helper()
	out, err := tl.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("tool %s: %v", tl.Name, err)
	}
	return out
}

func TestBuild_AllScenarios(t *testing.T) {
	deps := testDeps(t)
	for _, name := range Names() {
		s, err := Build(name, deps)
		if err != nil {
			t.Fatalf("build %s: %v", name, err)
		}
		if s.Instructions == "" || len(s.Tools) == 0 {
			t.Fatalf("scenario %s incomplete", name)
		}
	}
	if _, err := Build("bogus", deps); err == nil {
		t.Fatalf("expected error for unknown scenario")
	}
}

func TestWellness_SaveAndSeedGreeting(t *testing.T) {
	deps := testDeps(t)
	s := Wellness(deps.WellnessLog)
	out := call(t, tool(t, s, "save_checkin"),
		`{"mood":"calm","energy":"high","goals":["run"],"summary":"good day"}`)
	if out != "saved" {
		t.Fatalf("save_checkin: %q", out)
	}
	// A new session's instructions reference the last check-in.
	s2 := Wellness(deps.WellnessLog)
	if !strings.Contains(s2.Instructions, `"calm"`) {
		t.Fatalf("expected greeting seeded from last check-in:\n%s", s2.Instructions)
	}
}

func TestGrocery_CartFlow(t *testing.T) {
	deps := testDeps(t)
	s := Grocery(deps.Catalog, deps.Recipes, deps.Orders)

	if out := call(t, tool(t, s, "place_order"), `{"customer":"Dana"}`); !strings.Contains(out, "empty") {
		t.Fatalf("expected empty-cart message, got %q", out)
	}
	if out := call(t, tool(t, s, "add_to_cart"), `{"item":"caviar"}`); !strings.Contains(out, "not in the catalog") {
		t.Fatalf("expected unknown-item message, got %q", out)
	}
	call(t, tool(t, s, "add_to_cart"), `{"item":"milk","quantity":2}`)
	call(t, tool(t, s, "add_recipe_ingredients"), `{"recipe":"omelette"}`)

	out := call(t, tool(t, s, "view_cart"), `{}`)
	if !strings.Contains(out, "3 x milk") || !strings.Contains(out, "1 x eggs") {
		t.Fatalf("view_cart: %q", out)
	}

	out = call(t, tool(t, s, "place_order"), `{"customer":"Dana"}`)
	if !strings.Contains(out, "Order placed for Dana") {
		t.Fatalf("place_order: %q", out)
	}
	// cart cleared: the next order attempt reports empty
	if out := call(t, tool(t, s, "place_order"), `{"customer":"Dana"}`); !strings.Contains(out, "empty") {
		t.Fatalf("expected empty cart after order, got %q", out)
	}
}

func TestSDR_DetectAndCapture(t *testing.T) {
	deps := testDeps(t)
	s := SDR(deps.Personas, deps.Leads)

	out := call(t, tool(t, s, "detect_persona"), `{"statement":"I'm a developer building api integrations"}`)
	if !strings.Contains(out, "engineer") {
		t.Fatalf("detect_persona: %q", out)
	}
	out = call(t, tool(t, s, "capture_lead"), `{"name":"Sam","company":"Acme","need":"automation"}`)
	if !strings.Contains(out, "Sam") {
		t.Fatalf("capture_lead: %q", out)
	}
	leads := deps.Leads.Leads()
	if len(leads) != 1 || leads[0].Persona != "engineer" {
		t.Fatalf("expected detected persona on the lead, got %+v", leads)
	}
}

// Seed John with answer "blue": "Blue" verifies; two wrong answers close the
// case as verification_failed and it disappears from the pending lookup.
func TestFraud_VerificationDialogue(t *testing.T) {
	deps := testDeps(t)

	// Call one: wrong answer twice fails the case.
	s := Fraud(deps.FraudRepo)
	out := call(t, tool(t, s, "lookup_pending_case"), `{"name":"John"}`)
	if !strings.Contains(out, "ABC Industries") {
		t.Fatalf("lookup: %q", out)
	}
	if strings.Contains(out, `"blue"`) {
		t.Fatalf("lookup leaked the security answer: %q", out)
	}
	for i := 0; i < 2; i++ {
		out = call(t, tool(t, s, "verify_security_answer"), `{"answer":"green"}`)
	}
	if !strings.Contains(out, "exhausted") {
		t.Fatalf("expected exhaustion message, got %q", out)
	}
	out = call(t, tool(t, s, "record_outcome"), `{"result":"failed","note":"could not verify"}`)
	if !strings.Contains(out, "verification_failed") {
		t.Fatalf("record_outcome: %q", out)
	}

	// Call two: the failed case is gone; the next one verifies with "Blue".
	s2 := Fraud(deps.FraudRepo)
	out = call(t, tool(t, s2, "lookup_pending_case"), `{"name":"John"}`)
	if !strings.Contains(out, "GizmoTech") {
		t.Fatalf("expected second case after first failed, got %q", out)
	}
	out = call(t, tool(t, s2, "verify_security_answer"), `{"answer":"Blue"}`)
	if !strings.Contains(out, "Verified") {
		t.Fatalf("verify: %q", out)
	}
	out = call(t, tool(t, s2, "record_outcome"), `{"result":"safe","note":"customer confirmed"}`)
	if !strings.Contains(out, "confirmed_safe") {
		t.Fatalf("record_outcome: %q", out)
	}

	// No pending case remains for John.
	s3 := Fraud(deps.FraudRepo)
	out = call(t, tool(t, s3, "lookup_pending_case"), `{"name":"John"}`)
	if !strings.Contains(out, "No pending case") {
		t.Fatalf("expected no pending case, got %q", out)
	}
}

func TestFraud_OutcomeBeforeVerificationRefused(t *testing.T) {
	deps := testDeps(t)
	s := Fraud(deps.FraudRepo)
	call(t, tool(t, s, "lookup_pending_case"), `{"name":"Alice"}`)
	out := call(t, tool(t, s, "record_outcome"), `{"result":"safe"}`)
	if !strings.Contains(out, "Could not close") {
		t.Fatalf("expected refusal before verification, got %q", out)
	}
}

func TestGameMaster_Tools(t *testing.T) {
	s := GameMaster()
	out := call(t, tool(t, s, "roll_dice"), `{"count":3,"sides":6}`)
	if !strings.Contains(out, "3d6") {
		t.Fatalf("roll_dice: %q", out)
	}
	if out := call(t, tool(t, s, "recall_scenes"), `{}`); !strings.Contains(out, "No story beats") {
		t.Fatalf("recall empty: %q", out)
	}
	call(t, tool(t, s, "note_scene"), `{"note":"the bridge is out"}`)
	if out := call(t, tool(t, s, "recall_scenes"), `{}`); !strings.Contains(out, "bridge") {
		t.Fatalf("recall: %q", out)
	}
}
