package fraud

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrIllegalTransition is returned when a status update would violate the
// transition table (e.g. re-verifying a confirmed_fraud case).
var ErrIllegalTransition = errors.New("fraud: illegal status transition")

// Repository persists fraud cases in a local SQLite file. Every method opens
// its own connection and closes it before returning; there is no pooling and
// no transaction spanning calls, so two racing status updates on the same id
// resolve last-writer-wins.
type Repository struct {
	dbPath string
}

// NewRepository returns a repository over the SQLite file at dbPath.
func NewRepository(dbPath string) *Repository {
	return &Repository{dbPath: dbPath}
}

func (r *Repository) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", r.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open fraud db: %w", err)
	}
	return db, nil
}

const caseColumns = `id, user_name, security_identifier, masked_card,
	transaction_amount, merchant_name, location, timestamp,
	transaction_category, transaction_source,
	security_question, security_answer, status, outcome_note`

func scanCase(row *sql.Row) (Case, error) {
	var c Case
	var note sql.NullString
	var status string
	err := row.Scan(
		&c.ID, &c.UserName, &c.SecurityIdentifier, &c.MaskedCard,
		&c.TransactionAmount, &c.MerchantName, &c.Location, &c.Timestamp,
		&c.TransactionCategory, &c.TransactionSource,
		&c.SecurityQuestion, &c.SecurityAnswer, &status, &note,
	)
	if err != nil {
		return Case{}, err
	}
	c.Status = Status(status)
	c.OutcomeNote = note.String
	return c, nil
}

// PendingCaseForUser returns the oldest pending_review case for an exact
// (case-sensitive) user-name match. found is false when no such case exists;
// that is not an error.
func (r *Repository) PendingCaseForUser(userName string) (Case, bool, error) {
	db, err := r.open()
	if err != nil {
		return Case{}, false, err
	}
	defer db.Close()

	row := db.QueryRow(`
		SELECT `+caseColumns+`
		FROM fraud_cases
		WHERE user_name = ? AND status = ?
		ORDER BY id ASC
		LIMIT 1`, userName, string(StatusPendingReview))
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, false, nil
	}
	if err != nil {
		return Case{}, false, fmt.Errorf("query pending case: %w", err)
	}
	return c, true, nil
}

// VerifySecurityAnswer compares the caller's answer against the stored one,
// insensitive to case and surrounding whitespace. An unknown case id fails
// closed (false, nil).
func (r *Repository) VerifySecurityAnswer(caseID int64, answer string) (bool, error) {
	db, err := r.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow(`SELECT security_answer FROM fraud_cases WHERE id = ?`, caseID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query security answer: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(stored))
	got := strings.ToLower(strings.TrimSpace(answer))
	return want == got, nil
}

// UpdateStatus moves a case to a new status and records the outcome note.
// The change is checked against the transition table; an update on a case
// whose current status cannot reach newStatus returns ErrIllegalTransition.
// A legal update matching no row succeeds silently.
func (r *Repository) UpdateStatus(caseID int64, newStatus Status, note string) error {
	db, err := r.open()
	if err != nil {
		return err
	}
	defer db.Close()

	var current string
	err = db.QueryRow(`SELECT status FROM fraud_cases WHERE id = ?`, caseID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query current status: %w", err)
	}
	if !CanTransition(Status(current), newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, newStatus)
	}

	_, err = db.Exec(`UPDATE fraud_cases SET status = ?, outcome_note = ? WHERE id = ?`,
		string(newStatus), note, caseID)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
