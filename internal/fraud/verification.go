package fraud

import "fmt"

// DialogueState tracks where one verification call stands.
type DialogueState string

const (
	StateNoCase         DialogueState = "NO_CASE"
	StateAwaitingAnswer DialogueState = "AWAITING_ANSWER"
	StateVerified       DialogueState = "VERIFIED"
	StateFailed         DialogueState = "FAILED"
)

// MaxFailedAttempts is how many wrong answers a caller gets before the case
// is expected to be closed as verification_failed.
const MaxFailedAttempts = 2

// Verification is the per-session dialogue policy over the repository. The
// failure counter lives only here: a restarted session starts back at zero
// even against a still-pending case.
type Verification struct {
	repo *Repository

	state    DialogueState
	caseID   int64
	failures int
}

// NewVerification returns a dialogue in the NO_CASE state.
func NewVerification(repo *Repository) *Verification {
	return &Verification{repo: repo, state: StateNoCase}
}

// State returns the current dialogue state.
func (v *Verification) State() DialogueState { return v.state }

// Failures returns the number of wrong answers so far this session.
func (v *Verification) Failures() int { return v.failures }

// CaseID returns the id of the case under verification, 0 when none.
func (v *Verification) CaseID() int64 { return v.caseID }

// Lookup finds the oldest pending case for the claimed name and, when one
// exists, moves the dialogue to AWAITING_ANSWER.
func (v *Verification) Lookup(userName string) (Case, bool, error) {
	c, found, err := v.repo.PendingCaseForUser(userName)
	if err != nil {
		return Case{}, false, err
	}
	if !found {
		v.state = StateNoCase
		v.caseID = 0
		return Case{}, false, nil
	}
	v.state = StateAwaitingAnswer
	v.caseID = c.ID
	v.failures = 0
	return c, true, nil
}

// SubmitAnswer attempts verification of the active case. A correct answer
// moves to VERIFIED and resets the failure counter; a wrong one increments
// it and stays in AWAITING_ANSWER.
func (v *Verification) SubmitAnswer(answer string) (bool, error) {
	if v.state != StateAwaitingAnswer {
		return false, fmt.Errorf("no case awaiting an answer (state %s)", v.state)
	}
	ok, err := v.repo.VerifySecurityAnswer(v.caseID, answer)
	if err != nil {
		return false, err
	}
	if ok {
		v.state = StateVerified
		v.failures = 0
		return true, nil
	}
	v.failures++
	return false, nil
}

// ShouldFail reports whether the caller has exhausted their attempts.
func (v *Verification) ShouldFail() bool {
	return v.state == StateAwaitingAnswer && v.failures >= MaxFailedAttempts
}

// RecordFailure persists verification_failed and moves to FAILED. The case is
// no longer returned by the pending lookup afterwards.
func (v *Verification) RecordFailure(note string) error {
	if v.state != StateAwaitingAnswer {
		return fmt.Errorf("cannot fail verification from state %s", v.state)
	}
	if err := v.repo.UpdateStatus(v.caseID, StatusVerificationFailed, note); err != nil {
		return err
	}
	v.state = StateFailed
	return nil
}

// RecordOutcome persists the customer's yes/no on "did you make this
// transaction": confirmed_safe when they did, confirmed_fraud when they
// did not. Only legal from VERIFIED; both outcomes are terminal.
func (v *Verification) RecordOutcome(madeTransaction bool, note string) (Status, error) {
	if v.state != StateVerified {
		return "", fmt.Errorf("cannot record outcome from state %s", v.state)
	}
	status := StatusConfirmedFraud
	if madeTransaction {
		status = StatusConfirmedSafe
	}
	if err := v.repo.UpdateStatus(v.caseID, status, note); err != nil {
		return "", err
	}
	return status, nil
}
