package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// Turn is one line of a finished call transcript.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Record is what gets archived when a call ends.
type Record struct {
	CallID   string    `json:"call_id"`
	Scenario string    `json:"scenario"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Turns    []Turn    `json:"turns"`
}

// Store uploads named blobs. Satisfied by SupabaseStore and by test fakes.
type Store interface {
	Upload(key, contentType string, data []byte) error
}

// SupabaseStore keeps call artifacts in a Supabase storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	bucket string
}

func NewSupabaseStore(url, serviceRoleKey, bucket string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, bucket: bucket}, nil
}

func (s *SupabaseStore) Upload(key, contentType string, data []byte) error {
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload %s to supabase: %w", key, err)
	}
	return nil
}

// Archiver serializes call records and hands them to a store. A nil Archiver
// is valid and archives nothing, so calls work without Supabase configured.
type Archiver struct {
	store Store
}

func NewArchiver(store Store) *Archiver {
	if store == nil {
		return nil
	}
	return &Archiver{store: store}
}

// SaveTranscript uploads the record as pretty JSON keyed by scenario and call.
func (a *Archiver) SaveTranscript(rec Record) error {
	if a == nil {
		return nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	key := fmt.Sprintf("transcripts/%s/%s.json", rec.Scenario, rec.CallID)
	return a.store.Upload(key, "application/json", data)
}
