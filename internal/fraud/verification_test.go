package fraud

import "testing"

func TestVerification_HappyPath(t *testing.T) {
	repo := newTestRepo(t)
	v := NewVerification(repo)

	if v.State() != StateNoCase {
		t.Fatalf("expected NO_CASE, got %s", v.State())
	}
	c, found, err := v.Lookup("John")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found || v.State() != StateAwaitingAnswer {
		t.Fatalf("expected AWAITING_ANSWER with a case, got state=%s found=%v", v.State(), found)
	}

	// Answer matching is case-insensitive.
	ok, err := v.SubmitAnswer("Blue")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !ok || v.State() != StateVerified {
		t.Fatalf("expected VERIFIED, got ok=%v state=%s", ok, v.State())
	}

	status, err := v.RecordOutcome(true, "customer made the purchase")
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if status != StatusConfirmedSafe {
		t.Fatalf("expected confirmed_safe, got %s", status)
	}

	// The closed case must no longer be the pending one.
	next, found, err := repo.PendingCaseForUser("John")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found || next.ID == c.ID {
		t.Fatalf("closed case still pending")
	}
}

func TestVerification_TwoWrongAnswersFailTheCase(t *testing.T) {
	repo := newTestRepo(t)
	v := NewVerification(repo)

	c, found, err := v.Lookup("John")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}

	for i := 0; i < MaxFailedAttempts; i++ {
		ok, err := v.SubmitAnswer("green")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if ok {
			t.Fatalf("wrong answer accepted")
		}
	}
	if !v.ShouldFail() {
		t.Fatalf("expected ShouldFail after %d misses", MaxFailedAttempts)
	}
	if err := v.RecordFailure("security answer not verified"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if v.State() != StateFailed {
		t.Fatalf("expected FAILED, got %s", v.State())
	}

	next, found, err := repo.PendingCaseForUser("John")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found && next.ID == c.ID {
		t.Fatalf("failed case still returned by pending lookup")
	}
}

func TestVerification_CounterResetsWithNewSession(t *testing.T) {
	repo := newTestRepo(t)

	v1 := NewVerification(repo)
	if _, _, err := v1.Lookup("Alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := v1.SubmitAnswer("wrong"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v1.Failures() != 1 {
		t.Fatalf("expected 1 failure, got %d", v1.Failures())
	}

	// A fresh session against the same still-pending case starts at zero.
	v2 := NewVerification(repo)
	if _, found, err := v2.Lookup("Alice"); err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if v2.Failures() != 0 {
		t.Fatalf("expected fresh counter, got %d", v2.Failures())
	}
}

func TestVerification_OutcomeRequiresVerified(t *testing.T) {
	repo := newTestRepo(t)
	v := NewVerification(repo)
	if _, err := v.RecordOutcome(true, "n/a"); err == nil {
		t.Fatalf("expected error recording outcome from NO_CASE")
	}
	if _, _, err := v.Lookup("Alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := v.RecordOutcome(false, "n/a"); err == nil {
		t.Fatalf("expected error recording outcome before verification")
	}
}
