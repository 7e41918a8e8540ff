package fraud

// Status is the lifecycle state of a fraud case. Values are stored as plain
// strings in the table; the repository enforces legal transitions.
type Status string

const (
	StatusPendingReview      Status = "pending_review"
	StatusVerificationFailed Status = "verification_failed"
	StatusConfirmedSafe      Status = "confirmed_safe"
	StatusConfirmedFraud     Status = "confirmed_fraud"
)

// Terminal reports whether a case in this status is done with verification.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerificationFailed, StatusConfirmedSafe, StatusConfirmedFraud:
		return true
	}
	return false
}

// legalTransitions is the explicit state table: pending may move to any
// terminal status, terminal statuses move nowhere.
var legalTransitions = map[Status][]Status{
	StatusPendingReview: {StatusVerificationFailed, StatusConfirmedSafe, StatusConfirmedFraud},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Case is one suspicious-transaction row.
type Case struct {
	ID                  int64
	UserName            string
	SecurityIdentifier  string
	MaskedCard          string
	TransactionAmount   float64
	MerchantName        string
	Location            string
	Timestamp           string
	TransactionCategory string
	TransactionSource   string
	SecurityQuestion    string
	SecurityAnswer      string
	Status              Status
	OutcomeNote         string
}

// Public returns the fields safe to surface to the dialogue engine.
// The stored security answer is never included.
func (c Case) Public() map[string]any {
	return map[string]any{
		"id":                   c.ID,
		"user_name":            c.UserName,
		"masked_card":          c.MaskedCard,
		"transaction_amount":   c.TransactionAmount,
		"merchant_name":        c.MerchantName,
		"location":             c.Location,
		"timestamp":            c.Timestamp,
		"transaction_category": c.TransactionCategory,
		"transaction_source":   c.TransactionSource,
		"security_question":    c.SecurityQuestion,
		"status":               string(c.Status),
		"outcome_note":         c.OutcomeNote,
	}
}
