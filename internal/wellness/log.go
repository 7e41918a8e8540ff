package wellness

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Checkin is one persisted daily check-in. Entries are appended and never
// mutated or removed.
type Checkin struct {
	Timestamp string   `json:"timestamp"`
	Mood      string   `json:"mood"`
	Energy    string   `json:"energy"`
	Goals     []string `json:"goals"`
	Summary   string   `json:"summary"`
}

// Log stores check-ins as a single JSON array file, rewritten in full on
// every append.
type Log struct {
	path string
	now  func() time.Time
}

// NewLog returns a log backed by the file at path.
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Entries loads all check-ins in original append order. A missing or corrupt
// file yields an empty log.
func (l *Log) Entries() []Checkin {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("wellness: read log: %v", err)
		}
		return nil
	}
	var entries []Checkin
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("wellness: parse log, starting empty: %v", err)
		return nil
	}
	return entries
}

// Last returns the most recent check-in, used to seed the next greeting.
func (l *Log) Last() (Checkin, bool) {
	entries := l.Entries()
	if len(entries) == 0 {
		return Checkin{}, false
	}
	return entries[len(entries)-1], true
}

// Append stamps and stores a new check-in.
func (l *Log) Append(mood, energy string, goals []string, summary string) (Checkin, error) {
	entry := Checkin{
		Timestamp: l.now().UTC().Format("2006-01-02T15:04:05"),
		Mood:      mood,
		Energy:    energy,
		Goals:     goals,
		Summary:   summary,
	}
	entries := append(l.Entries(), entry)

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Checkin{}, fmt.Errorf("create log dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Checkin{}, fmt.Errorf("encode log: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return Checkin{}, fmt.Errorf("write log: %w", err)
	}
	return entry, nil
}
