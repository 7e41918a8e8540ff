package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/fraud"
)

const fraudInstructions = `You are a bank's fraud-prevention agent calling a customer about a
suspicious transaction. Follow this script strictly:
1. Ask for the customer's name and call lookup_pending_case with it.
2. If a case exists, read out its security question and nothing else about the case yet.
3. Pass their answer to verify_security_answer. On a wrong answer let them retry once.
   If the tool tells you attempts are exhausted, call record_outcome with result "failed"
   and politely end the call directing them to a branch.
4. Once verified, describe the transaction (merchant, amount, location, time) and ask
   "did you make this transaction?". Call record_outcome with result "safe" when they did
   or "fraud" when they did not, then summarize and close.
Never reveal the expected security answer. Never skip verification.`

// Fraud builds the fraud-verification caller. The dialogue state machine and
// its failure counter live only in this scenario instance; a new call starts
// fresh even against a still-pending case.
func Fraud(repo *fraud.Repository) Scenario {
	v := fraud.NewVerification(repo)

	lookup := agent.Tool{
		Name:        "lookup_pending_case",
		Description: "Find the customer's oldest pending fraud case by their name.",
		Schema: objectSchema(map[string]any{
			"name": stringProp("The customer's name, exactly as they stated it"),
		}, "name"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the name, please try again.", nil
			}
			c, found, err := v.Lookup(in.Name)
			if err != nil {
				return "", err
			}
			if !found {
				return fmt.Sprintf("No pending case exists for %q.", in.Name), nil
			}
			data, _ := json.Marshal(c.Public())
			return string(data), nil
		},
	}

	verify := agent.Tool{
		Name:        "verify_security_answer",
		Description: "Check the customer's answer to their security question.",
		Schema: objectSchema(map[string]any{
			"answer": stringProp("The customer's spoken answer"),
		}, "answer"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Answer string `json:"answer"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the answer, please try again.", nil
			}
			ok, err := v.SubmitAnswer(in.Answer)
			if err != nil {
				return fmt.Sprintf("Verification is not possible right now: %v.", err), nil
			}
			if ok {
				return "Verified. You may now discuss the transaction.", nil
			}
			if v.ShouldFail() {
				return "Wrong answer and attempts are exhausted. Call record_outcome with result \"failed\".", nil
			}
			return fmt.Sprintf("Wrong answer (%d of %d attempts used). Let the customer retry.", v.Failures(), fraud.MaxFailedAttempts), nil
		},
	}

	recordOutcome := agent.Tool{
		Name:        "record_outcome",
		Description: "Close the case: result is \"safe\", \"fraud\", or \"failed\".",
		Schema: objectSchema(map[string]any{
			"result": stringProp("One of: safe, fraud, failed"),
			"note":   stringProp("Short outcome note for the case record"),
		}, "result"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Result string `json:"result"`
				Note   string `json:"note"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the outcome, please try again.", nil
			}
			switch strings.ToLower(strings.TrimSpace(in.Result)) {
			case "failed":
				if err := v.RecordFailure(in.Note); err != nil {
					return fmt.Sprintf("Could not close the case: %v.", err), nil
				}
				return "Case closed as verification_failed.", nil
			case "safe":
				status, err := v.RecordOutcome(true, in.Note)
				if err != nil {
					return fmt.Sprintf("Could not close the case: %v.", err), nil
				}
				return fmt.Sprintf("Case closed as %s.", status), nil
			case "fraud":
				status, err := v.RecordOutcome(false, in.Note)
				if err != nil {
					return fmt.Sprintf("Could not close the case: %v.", err), nil
				}
				return fmt.Sprintf("Case closed as %s.", status), nil
			}
			return fmt.Sprintf("%q is not a valid result; use safe, fraud, or failed.", in.Result), nil
		},
	}

	return Scenario{Name: "fraud", Instructions: fraudInstructions, Tools: []agent.Tool{lookup, verify, recordOutcome}}
}
