package barge

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcmSine(sr int, hz float64, durMs int) []byte {
	n := sr * durMs / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*hz*float64(i)/float64(sr)))
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(v))
	}
	return out
}

func TestDetector_TriggersOnSpeechWhileAgentSpeaks(t *testing.T) {
	triggered := false
	stopped := false
	var preLen int
	d := NewDetector(DefaultWebRTC(), Events{
		OnTTSStop: func(ts time.Time) { stopped = true },
		OnTrigger: func(ts time.Time, cues Cues, pre []byte) {
			triggered = true
			preLen = len(pre)
		},
	})
	d.SetSpeaking(true)
	d.FeedMic16k(pcmSine(16000, 220, 400))
	if !triggered {
		t.Fatalf("expected trigger")
	}
	if !stopped {
		t.Fatalf("expected TTS stop")
	}
	if preLen == 0 {
		t.Fatalf("expected pre-roll audio")
	}
}

func TestDetector_SilentWhileAgentQuiet(t *testing.T) {
	triggered := false
	d := NewDetector(DefaultWebRTC(), Events{
		OnTrigger: func(time.Time, Cues, []byte) { triggered = true },
	})
	d.FeedMic16k(pcmSine(16000, 220, 400))
	if triggered {
		t.Fatalf("must not trigger while not speaking")
	}
}

func TestDetector_DiscountsEchoedWords(t *testing.T) {
	d := NewDetector(DefaultWebRTC(), Events{})
	d.NotifyTTSText("your order total is eleven dollars")
	d.NotifyPartial("order total is eleven")
	if d.transcriptGrew() {
		t.Fatalf("echoed words must not count as growth")
	}
	d.NotifyPartial("order total is eleven wait cancel that please")
	if !d.transcriptGrew() {
		t.Fatalf("fresh words should count as growth")
	}
}
