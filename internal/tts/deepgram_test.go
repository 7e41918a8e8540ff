package tts

import (
	"context"
	"testing"
	"time"
)

func TestSynthesizer_NoKeyFailsFast(t *testing.T) {
	d := NewSynthesizer("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pcmCh, errCh := d.StreamPCM48k(ctx, "hello")
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error when api key missing")
		}
	case <-pcmCh:
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for error")
	}
}

func TestSynthesizer_EmptyTextClosesCleanly(t *testing.T) {
	d := NewSynthesizer("key", "")
	pcmCh, errCh := d.StreamPCM48k(context.Background(), "")
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Fatalf("empty text should not error: %v", err)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for channel close")
	}
	if _, ok := <-pcmCh; ok {
		t.Fatalf("expected no audio for empty text")
	}
}
