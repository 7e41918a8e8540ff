package barge

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"time"
)

// Frame10ms is one 10ms mono PCM frame at the configured sample rate.
// At 16kHz that is 160 int16 samples.
type Frame10ms []int16

// Config holds the detector thresholds.
type Config struct {
	SampleRate      int // engine expects 10ms frames at this rate
	SpeechRMS       float64
	FuseWindowMs    int // voting window while the agent speaks
	HysteresisOffMs int // quiet window that resets the on-votes
	PreRollMs       int // caller audio replayed to the ASR after a trigger
	MinNewTokens    int // transcript growth needed for the ASR cue
}

// DefaultWebRTC is tuned for a browser headset over WebRTC.
func DefaultWebRTC() Config {
	return Config{
		SampleRate:      16000,
		SpeechRMS:       300.0,
		FuseWindowMs:    150,
		HysteresisOffMs: 200,
		PreRollMs:       220,
		MinNewTokens:    3,
	}
}

// Cues reports which detectors voted for the trigger.
type Cues struct{ VAD, ASR bool }

// Events let the host react when a caller talks over the agent.
type Events struct {
	// OnTrigger fires once per barge-in; preRoll holds the last PreRollMs of
	// caller audio as PCM16LE so no leading words are lost.
	OnTrigger func(ts time.Time, cues Cues, preRoll []byte)
	// OnTTSStop should cancel synthesis and drop queued output immediately.
	OnTTSStop func(ts time.Time)
}

// Detector fuses an energy VAD with ASR transcript growth to decide that the
// caller is interrupting. It only votes while SetSpeaking(true).
type Detector struct {
	cfg Config
	ev  Events

	mu          sync.Mutex
	speaking    bool
	lastPartial string
	seenTokens  int
	spokenWords map[string]struct{}

	vad      *energyVAD
	preRoll  *pcmRing
	votesOn  *voteWindow
	votesOff *voteWindow
}

func NewDetector(cfg Config, ev Events) *Detector {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SpeechRMS == 0 {
		cfg.SpeechRMS = 300.0
	}
	return &Detector{
		cfg:         cfg,
		ev:          ev,
		spokenWords: make(map[string]struct{}),
		vad:         &energyVAD{threshold: cfg.SpeechRMS, smoothN: 4},
		preRoll:     newPCMRing(300, cfg.SampleRate),
		votesOn:     newVoteWindow(cfg.FuseWindowMs),
		votesOff:    newVoteWindow(cfg.HysteresisOffMs),
	}
}

// SetSpeaking toggles detection; triggers fire only while the agent speaks.
func (d *Detector) SetSpeaking(on bool) {
	d.mu.Lock()
	d.speaking = on
	d.mu.Unlock()
}

// Reset clears vote and transcript state between turns.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.votesOn.Reset()
	d.votesOff.Reset()
	d.lastPartial = ""
	d.seenTokens = 0
	d.mu.Unlock()
}

// NotifyPartial supplies the running ASR partial; token growth beyond the
// agent's own spoken words counts as an interruption cue.
func (d *Detector) NotifyPartial(text string) {
	d.mu.Lock()
	d.lastPartial = text
	d.mu.Unlock()
}

// NotifyTTSText registers words the agent is about to speak so mic echo of
// them is discounted.
func (d *Detector) NotifyTTSText(text string) {
	d.mu.Lock()
	for _, w := range strings.Fields(strings.ToLower(text)) {
		d.spokenWords[strings.Trim(w, ".,!?")] = struct{}{}
	}
	d.mu.Unlock()
}

// FeedMic16k accepts arbitrary-length PCM16LE mic audio and segments it into
// 10ms frames.
func (d *Detector) FeedMic16k(pcm []byte) {
	samplesPer10ms := d.cfg.SampleRate / 100
	for off := 0; off+samplesPer10ms*2 <= len(pcm); off += samplesPer10ms * 2 {
		frame := make(Frame10ms, samplesPer10ms)
		for i := 0; i < samplesPer10ms; i++ {
			frame[i] = int16(binary.LittleEndian.Uint16(pcm[off+i*2 : off+i*2+2]))
		}
		d.onFrame(frame)
	}
}

func (d *Detector) onFrame(frame Frame10ms) {
	d.mu.Lock()
	speaking := d.speaking
	d.mu.Unlock()

	d.preRoll.Write(frame)
	vadYes := d.vad.isSpeech(frame)
	asrYes := d.transcriptGrew()

	if !speaking {
		return
	}
	d.votesOn.Push(vadYes || asrYes)
	d.votesOff.Push(!vadYes && !asrYes)
	if d.votesOn.Ratio() >= 2.0/3.0 {
		d.trigger(Cues{VAD: vadYes, ASR: asrYes})
		return
	}
	if d.votesOff.Ratio() >= 2.0/3.0 {
		d.votesOn.Reset()
	}
}

// transcriptGrew reports whether the partial gained MinNewTokens words that
// are not echoes of the agent's own speech.
func (d *Detector) transcriptGrew() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	tokens := strings.Fields(strings.ToLower(d.lastPartial))
	if len(tokens) <= d.seenTokens {
		return false
	}
	fresh := 0
	for _, w := range tokens[d.seenTokens:] {
		w = strings.Trim(w, ".,!?")
		if isStopword(w) {
			continue
		}
		if _, echoed := d.spokenWords[w]; echoed {
			continue
		}
		fresh++
	}
	d.seenTokens = len(tokens)
	return fresh >= d.cfg.MinNewTokens
}

func (d *Detector) trigger(cues Cues) {
	pre := d.preRoll.ReadLastMs(d.cfg.PreRollMs)
	preBytes := make([]byte, len(pre)*2)
	for i, s := range pre {
		binary.LittleEndian.PutUint16(preBytes[i*2:(i+1)*2], uint16(s))
	}
	now := time.Now()
	if d.ev.OnTTSStop != nil {
		d.ev.OnTTSStop(now)
	}
	if d.ev.OnTrigger != nil {
		d.ev.OnTrigger(now, cues, preBytes)
	}
	d.votesOn.Reset()
	d.votesOff.Reset()
}

// energyVAD is a smoothed RMS gate over 10ms frames.
type energyVAD struct {
	threshold float64
	smoothN   int
	win       []bool
}

func (v *energyVAD) isSpeech(frame Frame10ms) bool {
	if len(frame) == 0 {
		return false
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	v.win = append(v.win, math.Sqrt(sum/float64(len(frame))) >= v.threshold)
	if len(v.win) > v.smoothN {
		v.win = v.win[len(v.win)-v.smoothN:]
	}
	yes := 0
	for _, b := range v.win {
		if b {
			yes++
		}
	}
	return yes*2 >= len(v.win)
}

// pcmRing keeps the last capacityMs of samples for pre-roll replay.
type pcmRing struct {
	mu       sync.Mutex
	buf      []int16
	writePos int
	sr       int
}

func newPCMRing(capacityMs, sampleRate int) *pcmRing {
	samples := capacityMs * sampleRate / 1000
	if samples < sampleRate/10 {
		samples = sampleRate / 10
	}
	return &pcmRing{buf: make([]int16, samples), sr: sampleRate}
}

func (c *pcmRing) Write(frame Frame10ms) {
	c.mu.Lock()
	for _, s := range frame {
		c.buf[c.writePos] = s
		c.writePos = (c.writePos + 1) % len(c.buf)
	}
	c.mu.Unlock()
}

func (c *pcmRing) ReadLastMs(ms int) []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := ms * c.sr / 1000
	if n > len(c.buf) {
		n = len(c.buf)
	}
	out := make([]int16, n)
	start := (c.writePos - n + len(c.buf)) % len(c.buf)
	for i := 0; i < n; i++ {
		out[i] = c.buf[(start+i)%len(c.buf)]
	}
	return out
}

type voteWindow struct {
	mu   sync.Mutex
	hist []bool
	size int
}

func newVoteWindow(ms int) *voteWindow {
	size := ms/10 + 1
	return &voteWindow{size: size}
}

func (v *voteWindow) Push(b bool) {
	v.mu.Lock()
	v.hist = append(v.hist, b)
	if len(v.hist) > v.size {
		v.hist = v.hist[len(v.hist)-v.size:]
	}
	v.mu.Unlock()
}

func (v *voteWindow) Ratio() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.hist) == 0 {
		return 0
	}
	yes := 0
	for _, b := range v.hist {
		if b {
			yes++
		}
	}
	return float64(yes) / float64(len(v.hist))
}

func (v *voteWindow) Reset() {
	v.mu.Lock()
	v.hist = v.hist[:0]
	v.mu.Unlock()
}

func isStopword(s string) bool {
	switch s {
	case "the", "a", "an", "and", "or", "to", "of", "in", "on", "for", "is", "it", "uh", "um":
		return true
	}
	return false
}
