package fraud

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS fraud_cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_name TEXT NOT NULL,
	security_identifier TEXT NOT NULL,
	masked_card TEXT NOT NULL,
	transaction_amount REAL NOT NULL,
	merchant_name TEXT NOT NULL,
	location TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	transaction_category TEXT NOT NULL,
	transaction_source TEXT NOT NULL,
	security_question TEXT NOT NULL,
	security_answer TEXT NOT NULL,
	status TEXT NOT NULL,
	outcome_note TEXT
);`

// EnsureSchema creates the fraud_cases table if it does not exist.
func (r *Repository) EnsureSchema() error {
	db, err := r.open()
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create fraud_cases table: %w", err)
	}
	return nil
}

// Seed wipes the table and inserts the given cases. IDs are auto-assigned in
// insertion order.
func (r *Repository) Seed(cases []Case) error {
	db, err := r.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create fraud_cases table: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM fraud_cases`); err != nil {
		return fmt.Errorf("clear fraud_cases: %w", err)
	}

	for _, c := range cases {
		var note any
		if c.OutcomeNote != "" {
			note = c.OutcomeNote
		}
		_, err := db.Exec(`
			INSERT INTO fraud_cases (
				user_name, security_identifier, masked_card,
				transaction_amount, merchant_name, location, timestamp,
				transaction_category, transaction_source,
				security_question, security_answer, status, outcome_note
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.UserName, c.SecurityIdentifier, c.MaskedCard,
			c.TransactionAmount, c.MerchantName, c.Location, c.Timestamp,
			c.TransactionCategory, c.TransactionSource,
			c.SecurityQuestion, c.SecurityAnswer, string(c.Status), note)
		if err != nil {
			return fmt.Errorf("insert case for %s: %w", c.UserName, err)
		}
	}
	return nil
}

// ListCases returns every row, oldest first. Used by the seeder's dump mode.
func (r *Repository) ListCases() ([]Case, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT ` + caseColumns + ` FROM fraud_cases ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		var c Case
		var note sql.NullString
		var status string
		if err := rows.Scan(
			&c.ID, &c.UserName, &c.SecurityIdentifier, &c.MaskedCard,
			&c.TransactionAmount, &c.MerchantName, &c.Location, &c.Timestamp,
			&c.TransactionCategory, &c.TransactionSource,
			&c.SecurityQuestion, &c.SecurityAnswer, &status, &note,
		); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c.Status = Status(status)
		c.OutcomeNote = note.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// SampleCases are the development seed rows.
func SampleCases() []Case {
	return []Case{
		{
			UserName:            "John",
			SecurityIdentifier:  "12345",
			MaskedCard:          "**** 4242",
			TransactionAmount:   249.99,
			MerchantName:        "ABC Industries",
			Location:            "San Francisco, USA",
			Timestamp:           "2025-11-25 14:32",
			TransactionCategory: "e-commerce",
			TransactionSource:   "alibaba.com",
			SecurityQuestion:    "What is your favorite color?",
			SecurityAnswer:      "blue",
			Status:              StatusPendingReview,
		},
		{
			UserName:            "John",
			SecurityIdentifier:  "12345",
			MaskedCard:          "**** 4242",
			TransactionAmount:   1299.00,
			MerchantName:        "GizmoTech Online",
			Location:            "New York, USA",
			Timestamp:           "2025-11-26 08:15",
			TransactionCategory: "electronics",
			TransactionSource:   "gizmoshop.com",
			SecurityQuestion:    "What is your favorite color?",
			SecurityAnswer:      "blue",
			Status:              StatusPendingReview,
		},
		{
			UserName:            "Alice",
			SecurityIdentifier:  "67890",
			MaskedCard:          "**** 9876",
			TransactionAmount:   59.50,
			MerchantName:        "QuickMart Grocery",
			Location:            "Chicago, USA",
			Timestamp:           "2025-11-20 19:45",
			TransactionCategory: "groceries",
			TransactionSource:   "quickmart.com",
			SecurityQuestion:    "What city were you born in?",
			SecurityAnswer:      "boston",
			Status:              StatusPendingReview,
		},
	}
}
