package sdr

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Lead is one captured prospect.
type Lead struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Company   string `json:"company"`
	Need      string `json:"need"`
	Persona   string `json:"persona"`
}

// LeadBook appends leads to a single JSON array file, same contract as the
// wellness log: rewritten in full on every append, missing file starts empty.
type LeadBook struct {
	path string
	now  func() time.Time
}

// NewLeadBook returns a lead store backed by the file at path.
func NewLeadBook(path string) *LeadBook {
	return &LeadBook{path: path, now: time.Now}
}

// Leads loads all captured leads in append order.
func (b *LeadBook) Leads() []Lead {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("sdr: read leads: %v", err)
		}
		return nil
	}
	var leads []Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		log.Printf("sdr: parse leads, starting empty: %v", err)
		return nil
	}
	return leads
}

// Capture stamps and stores a new lead.
func (b *LeadBook) Capture(name, company, need, persona string) (Lead, error) {
	lead := Lead{
		Timestamp: b.now().UTC().Format("2006-01-02T15:04:05"),
		Name:      name,
		Company:   company,
		Need:      need,
		Persona:   persona,
	}
	leads := append(b.Leads(), lead)

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Lead{}, fmt.Errorf("create leads dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return Lead{}, fmt.Errorf("encode leads: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return Lead{}, fmt.Errorf("write leads: %w", err)
	}
	return lead, nil
}
