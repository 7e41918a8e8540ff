package transcript

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// silenceThreshold is the base inactivity window required before an utterance
// is considered complete. Conservative so callers are not cut mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// continuationExtension is added to the threshold when the last word suggests
// the caller will keep talking ("and", "if", "about", ...).
const continuationExtension = 1200 * time.Millisecond

// stabilizationGrace absorbs late ASR updates after silence is detected.
const stabilizationGrace = 250 * time.Millisecond

// voiceRMS is the PCM energy above which a frame counts as speech.
const voiceRMS = 250.0

// utterance tracks the ASR transcript between finalizations. Protected by
// its own mutex so the hot audio path never contends with the websocket lock.
type utterance struct {
	mu        sync.Mutex
	latest    string
	committed string
	updatedAt time.Time
	voicedAt  time.Time
	timer     *time.Timer
}

// Streamer is a realtime transcriber backed by AssemblyAI's v3 streaming
// websocket. It emits partial transcripts on one channel and end-of-utterance
// deltas on another once silence settles.
type Streamer struct {
	apiKey      string
	conn        *websocket.Conn
	transcripts chan string
	finalizeCh  chan string
	audioCh     chan []byte
	stopCh      chan struct{}
	mu          sync.RWMutex
	connected   bool

	utt utterance
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewStreamer(apiKey string) *Streamer {
	return &Streamer{
		apiKey:      apiKey,
		transcripts: make(chan string, 100),
		finalizeCh:  make(chan string, 10),
		audioCh:     make(chan []byte, 1000),
		stopCh:      make(chan struct{}),
	}
}

// GetTranscripts streams every partial transcript as it arrives.
func (s *Streamer) GetTranscripts() <-chan string { return s.transcripts }

// Finalize signals end-of-utterance with the text spoken since the last one.
func (s *Streamer) Finalize() <-chan string { return s.finalizeCh }

// Connect dials the AssemblyAI streaming endpoint and starts the read and
// write pumps.
func (s *Streamer) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("AssemblyAI API key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := "wss://streaming.assemblyai.com/v3/ws?" + params.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, map[string][]string{"Authorization": {s.apiKey}})
	if err != nil {
		if resp != nil {
			log.Printf("AssemblyAI connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to AssemblyAI: %w", err)
	}

	s.conn = conn
	s.connected = true
	now := time.Now()
	s.utt.mu.Lock()
	s.utt.updatedAt = now
	s.utt.voicedAt = now
	s.utt.mu.Unlock()

	go s.readLoop()
	go s.writeLoop()

	log.Println("Connected to AssemblyAI streaming service")
	return nil
}

// SendPCM16KLE queues a 16kHz mono little-endian PCM buffer for transcription.
// The buffer is also scanned for voice energy so barge-in can react before
// any text arrives.
func (s *Streamer) SendPCM16KLE(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to AssemblyAI")
	}
	s.scanVoiceActivity(pcm)
	select {
	case s.audioCh <- pcm:
	default:
		log.Println("Audio buffer full, dropping packet")
	}
	return nil
}

// RecentlyDetectedVoice reports whether speech-level energy was observed
// within the given window.
func (s *Streamer) RecentlyDetectedVoice(window time.Duration) bool {
	s.utt.mu.Lock()
	last := s.utt.voicedAt
	s.utt.mu.Unlock()
	return time.Since(last) <= window
}

func (s *Streamer) scanVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	if math.Sqrt(sumSquares/float64(count)) >= voiceRMS {
		s.utt.mu.Lock()
		s.utt.voicedAt = time.Now()
		s.utt.mu.Unlock()
	}
}

// Close terminates the session and flushes any uncommitted text.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	s.utt.mu.Lock()
	if s.utt.timer != nil {
		_ = s.utt.timer.Stop()
		s.utt.timer = nil
	}
	s.utt.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	s.flushPendingDelta()
	close(s.audioCh)
	close(s.transcripts)
	close(s.finalizeCh)
	log.Println("AssemblyAI connection closed")
	return nil
}

func (s *Streamer) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in readLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			return
		}
		s.handleMessage(message)
	}
}

func (s *Streamer) handleMessage(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	switch base.Type {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("AssemblyAI session began: ID=%s, ExpiresAt=%s", msg.ID, time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339))
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		select {
		case s.transcripts <- msg.Transcript:
		default:
		}
		s.utt.mu.Lock()
		s.utt.latest = msg.Transcript
		s.utt.updatedAt = time.Now()
		s.rearmSilenceTimerLocked(silenceThreshold)
		s.utt.mu.Unlock()
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("AssemblyAI session terminated: AudioDuration=%.2fs, SessionDuration=%.2fs", msg.AudioDurationSeconds, msg.SessionDurationSeconds)
		s.flushPendingDelta()
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("AssemblyAI error: %s", msg.Error)
	default:
		log.Printf("Unknown message type: %s", base.Type)
	}
}

// rearmSilenceTimerLocked resets the end-of-utterance timer. utt.mu must be held.
func (s *Streamer) rearmSilenceTimerLocked(wait time.Duration) {
	if s.utt.timer == nil {
		s.utt.timer = time.AfterFunc(wait, s.finalizeDueToSilence)
		return
	}
	_ = s.utt.timer.Stop()
	s.utt.timer.Reset(wait)
}

// finalizeDueToSilence fires after the silence window. It re-checks both the
// text inactivity and the raw voice energy, because the ASR often trails the
// actual speech, then commits the delta since the last finalization.
func (s *Streamer) finalizeDueToSilence() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.utt.mu.Lock()
	now := time.Now()
	threshold := silenceThreshold
	if endsOnContinuation(s.utt.latest) {
		threshold += continuationExtension
	}
	sinceText := now.Sub(s.utt.updatedAt)
	sinceVoice := now.Sub(s.utt.voicedAt)
	if sinceText < threshold || sinceVoice < threshold {
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		s.rearmSilenceTimerLocked(wait)
		s.utt.mu.Unlock()
		return
	}
	seenAt := s.utt.updatedAt
	s.utt.mu.Unlock()

	// Let any in-flight transcript update land first.
	time.Sleep(stabilizationGrace)

	s.utt.mu.Lock()
	if s.utt.updatedAt.After(seenAt) {
		s.rearmSilenceTimerLocked(silenceThreshold)
		s.utt.mu.Unlock()
		return
	}
	delta := commitDeltaLocked(&s.utt)
	s.utt.mu.Unlock()

	if delta == "" {
		return
	}
	select {
	case <-s.stopCh:
	case s.finalizeCh <- delta:
	}
}

// commitDeltaLocked advances the committed transcript and returns the new
// text. utt.mu must be held.
func commitDeltaLocked(u *utterance) string {
	delta := strings.TrimSpace(strings.TrimPrefix(u.latest, u.committed))
	if delta == "" && u.committed != "" {
		if idx := strings.LastIndex(u.latest, u.committed); idx >= 0 {
			delta = strings.TrimSpace(u.latest[idx+len(u.committed):])
		}
	}
	u.committed = u.latest
	return delta
}

func (s *Streamer) flushPendingDelta() {
	s.utt.mu.Lock()
	delta := commitDeltaLocked(&s.utt)
	s.utt.mu.Unlock()
	if delta == "" {
		return
	}
	select {
	case s.finalizeCh <- delta:
	case <-time.After(200 * time.Millisecond):
		log.Printf("AssemblyAI flush: timed out delivering final delta")
	}
}

// endsOnContinuation returns true if the last word indicates the speaker is
// likely to keep going (conjunctions, prepositions, fillers).
func endsOnContinuation(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(text), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}

func (s *Streamer) writeLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in writeLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case pcm, ok := <-s.audioCh:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("Error sending audio data: %v", err)
				return
			}
		}
	}
}
