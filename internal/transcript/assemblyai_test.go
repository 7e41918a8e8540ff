package transcript

import (
	"encoding/binary"
	"testing"
	"time"
)

func loudFrame(samples int, amplitude uint16) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:(i+1)*2], amplitude)
	}
	return buf
}

func TestScanVoiceActivity_LoudFrameUpdatesVoiceTime(t *testing.T) {
	s := NewStreamer("test")
	if s.RecentlyDetectedVoice(time.Second) {
		t.Fatalf("fresh streamer should report no voice")
	}
	s.scanVoiceActivity(loudFrame(160, 3000))
	if !s.RecentlyDetectedVoice(time.Second) {
		t.Fatalf("expected voice after loud frame")
	}
}

func TestScanVoiceActivity_QuietFrameIgnored(t *testing.T) {
	s := NewStreamer("test")
	s.scanVoiceActivity(loudFrame(160, 10))
	if s.RecentlyDetectedVoice(time.Second) {
		t.Fatalf("quiet frame should not count as voice")
	}
}

func TestCommitDelta_EmitsOnlyNewText(t *testing.T) {
	var u utterance
	u.latest = "hello there"
	if got := commitDeltaLocked(&u); got != "hello there" {
		t.Fatalf("first delta: %q", got)
	}
	u.latest = "hello there how are you"
	if got := commitDeltaLocked(&u); got != "how are you" {
		t.Fatalf("second delta: %q", got)
	}
	if got := commitDeltaLocked(&u); got != "" {
		t.Fatalf("unchanged transcript should yield empty delta, got %q", got)
	}
}

func TestHelpers_LastWordAndContinuation(t *testing.T) {
	if lastWord("") != "" {
		t.Fatalf("lastWord empty mismatch")
	}
	if lastWord("hi there!") != "there" {
		t.Fatalf("lastWord basic mismatch")
	}
	if !endsOnContinuation("we should and") {
		t.Fatalf("expected continuation when last word is 'and'")
	}
	if endsOnContinuation("complete sentence.") {
		t.Fatalf("did not expect continuation")
	}
}
