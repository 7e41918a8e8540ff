package archive

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	key         string
	contentType string
	data        []byte
}

func (f *fakeStore) Upload(key, contentType string, data []byte) error {
	f.key, f.contentType, f.data = key, contentType, data
	return nil
}

func TestArchiver_SaveTranscript(t *testing.T) {
	fs := &fakeStore{}
	a := NewArchiver(fs)
	rec := Record{
		CallID:   "0102150405.000",
		Scenario: "fraud",
		StartAt:  time.Now(),
		EndAt:    time.Now(),
		Turns: []Turn{
			{Role: "USER", Text: "hello"},
			{Role: "ASSISTANT", Text: "hi, this is the fraud team"},
		},
	}
	if err := a.SaveTranscript(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(fs.key, "transcripts/fraud/") || !strings.HasSuffix(fs.key, ".json") {
		t.Fatalf("unexpected key %q", fs.key)
	}
	if fs.contentType != "application/json" {
		t.Fatalf("unexpected content type %q", fs.contentType)
	}
	var back Record
	if err := json.Unmarshal(fs.data, &back); err != nil {
		t.Fatalf("uploaded bytes are not JSON: %v", err)
	}
	if len(back.Turns) != 2 || back.Turns[1].Role != "ASSISTANT" {
		t.Fatalf("turns lost in serialization: %+v", back.Turns)
	}
}

func TestArchiver_NilArchivesNothing(t *testing.T) {
	var a *Archiver
	if err := a.SaveTranscript(Record{CallID: "x"}); err != nil {
		t.Fatalf("nil archiver must be a no-op, got %v", err)
	}
}
