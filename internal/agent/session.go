package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// maxToolRounds bounds how many tool-call round trips the model gets per
// user turn before it must answer in text.
const maxToolRounds = 4

// chunkReply splits an assistant reply into sentence-like chunks to allow
// committing transcript increments only after corresponding audio is emitted.
// Heuristic: split on '.', '?', '!' and newlines, retaining punctuation.
func chunkReply(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		case '\n', '\r':
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	tail := strings.TrimSpace(b.String())
	if tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// Session orchestrates STT -> LLM (with tool calls) -> TTS for a single call.
type Session struct {
	transcriber  Transcriber
	llm          LLM
	tts          TTS
	sink         PCM48kSink
	instructions string
	tools        []Tool
	onTranscript func(text string)
	// onTurn is invoked when a user utterance completes and the assistant has
	// spoken back some or all of its reply. The assistant text provided is
	// exactly what was actually spoken (possibly truncated if interrupted).
	onTurn func(user string, assistantSpoken string)

	mu               sync.Mutex
	speaking         bool
	ttsCancel        context.CancelFunc
	bargeInRequested bool

	// conversation history: user/assistant/tool messages in model order
	// (does not include the in-flight user text)
	history []Message
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithInstructions sets the scenario system prompt.
func WithInstructions(instructions string) Option {
	return func(s *Session) { s.instructions = instructions }
}

// WithTools registers the scenario toolset.
func WithTools(tools []Tool) Option {
	return func(s *Session) { s.tools = tools }
}

// WithTranscriptCallback streams live partial transcripts (optional UI).
func WithTranscriptCallback(fn func(string)) Option {
	return func(s *Session) { s.onTranscript = fn }
}

// WithTurnCallback reports each completed exchange with the spoken text.
func WithTurnCallback(fn func(user, assistantSpoken string)) Option {
	return func(s *Session) { s.onTurn = fn }
}

// NewSession constructs a new Session.
func NewSession(t Transcriber, llm LLM, tts TTS, sink PCM48kSink, opts ...Option) *Session {
	if sink == nil {
		sink = nopSink{}
	}
	s := &Session{transcriber: t, llm: llm, tts: tts, sink: sink}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// messagesForModel assembles system prompt + history + the latest user text.
func (s *Session) messagesForModel(latestUser string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, 0, len(s.history)+2)
	if s.instructions != "" {
		msgs = append(msgs, Message{Role: "system", Content: s.instructions})
	}
	msgs = append(msgs, s.history...)
	msgs = append(msgs, Message{Role: "user", Content: latestUser})
	return msgs
}

func (s *Session) appendHistory(msgs ...Message) {
	s.mu.Lock()
	s.history = append(s.history, msgs...)
	s.mu.Unlock()
}

func (s *Session) findTool(name string) (Tool, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// resolve runs the model, executing tool calls until it produces text or the
// round budget runs out. Tool results (including failures converted to
// explanatory strings) are appended to extra so the model sees them.
func (s *Session) resolve(ctx context.Context, base []Message) (reply string, extra []Message, err error) {
	msgs := base
	for round := 0; round <= maxToolRounds; round++ {
		completion, cerr := s.llm.Complete(ctx, msgs, s.tools)
		if cerr != nil {
			return "", extra, cerr
		}
		if len(completion.ToolCalls) == 0 {
			return strings.TrimSpace(completion.Text), extra, nil
		}

		assistant := Message{Role: "assistant", ToolCalls: completion.ToolCalls}
		extra = append(extra, assistant)
		msgs = append(msgs, assistant)
		for _, call := range completion.ToolCalls {
			result := s.runTool(ctx, call)
			toolMsg := Message{Role: "tool", Content: result, ToolCallID: call.ID}
			extra = append(extra, toolMsg)
			msgs = append(msgs, toolMsg)
		}
	}
	return "", extra, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

// runTool executes one tool call. Errors become conversational text for the
// model rather than faults.
func (s *Session) runTool(ctx context.Context, call ToolCall) string {
	tool, ok := s.findTool(call.Name)
	if !ok {
		log.Printf("tool call to unknown tool %q", call.Name)
		return fmt.Sprintf("There is no tool named %q.", call.Name)
	}
	result, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		log.Printf("tool %s error: %v", call.Name, err)
		return fmt.Sprintf("The %s action could not be completed: %v.", call.Name, err)
	}
	return result
}

// Start connects the transcriber and begins processing. It returns a stop function.
func (s *Session) Start(ctx context.Context) (func(), error) {
	if err := s.transcriber.Connect(); err != nil {
		return nil, err
	}

	// Stream live transcripts (optional UI)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-s.transcriber.GetTranscripts():
				if !ok {
					return
				}
				if s.onTranscript != nil && t != "" {
					s.onTranscript(t)
				}
			}
		}
	}()

	// On finalized utterance -> LLM (+tools) -> TTS -> sink
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case utterance, ok := <-s.transcriber.Finalize():
				if !ok {
					return
				}
				prompt := strings.TrimSpace(utterance)
				if prompt == "" {
					continue
				}
				log.Printf("heard(final): %s", prompt)
				// Before we let the assistant speak, ensure sustained silence
				// from the user to avoid talking over them.
				waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
				for waitCtx.Err() == nil {
					if !s.transcriber.RecentlyDetectedVoice(500 * time.Millisecond) {
						break
					}
					time.Sleep(50 * time.Millisecond)
				}
				waitCancel()

				msgs := s.messagesForModel(prompt)
				ctxLLM, cancel := context.WithTimeout(ctx, 30*time.Second)
				reply, toolMsgs, err := s.resolve(ctxLLM, msgs)
				cancel()
				if err != nil {
					log.Printf("llm error: %v", err)
					continue
				}
				if reply == "" {
					continue
				}

				// Record the user turn and any tool traffic now; the assistant
				// entry is appended after speaking with the spoken text only.
				s.appendHistory(append([]Message{{Role: "user", Content: prompt}}, toolMsgs...)...)

				spokenText, wasBarged := s.speak(ctx, reply)
				if wasBarged {
					if spokenText != "" {
						spokenText += " [INTERUPTED BY USER]"
					} else {
						spokenText = "[INTERUPTED BY USER]"
					}
				}
				if spokenText != "" {
					s.appendHistory(Message{Role: "assistant", Content: spokenText})
				}
				if s.onTurn != nil {
					s.onTurn(prompt, spokenText)
				}
			}
		}
	}()

	stop := func() {
		_ = s.transcriber.Close()
	}
	return stop, nil
}

// speak streams the reply through TTS in chunks, committing chunk text only
// after its audio was delivered. Returns the spoken text and whether the
// user barged in.
func (s *Session) speak(ctx context.Context, reply string) (string, bool) {
	ctxTTS, cancelTTS := context.WithCancel(ctx)
	s.mu.Lock()
	s.speaking = true
	s.ttsCancel = cancelTTS
	s.bargeInRequested = false
	s.mu.Unlock()

	var spokenBuilder strings.Builder
	chunks := chunkReply(reply)
CHUNK_LOOP:
	for i, chunk := range chunks {
		s.mu.Lock()
		barged := s.bargeInRequested
		s.mu.Unlock()
		if barged {
			break CHUNK_LOOP
		}

		pcmCh, errCh := s.tts.StreamPCM48k(ctxTTS, chunk)
		openPCM, openErr := true, true
		for openPCM || openErr {
			select {
			case b, ok := <-pcmCh:
				if ok {
					if len(b) > 0 {
						s.mu.Lock()
						drop := s.bargeInRequested
						s.mu.Unlock()
						if !drop {
							s.sink.WritePCM(b)
						}
					}
				} else {
					openPCM = false
				}
			case e, ok := <-errCh:
				if ok && e != nil {
					log.Printf("tts stream error: %v", e)
				}
				openErr = false
			case <-ctx.Done():
				openPCM, openErr = false, false
			}
		}
		s.mu.Lock()
		barged = s.bargeInRequested
		s.mu.Unlock()
		if barged {
			break CHUNK_LOOP
		}
		spokenBuilder.WriteString(strings.TrimSpace(chunk))
		if i < len(chunks)-1 {
			spokenBuilder.WriteString(" ")
		}
	}

	s.mu.Lock()
	wasBarged := s.bargeInRequested
	s.speaking = false
	s.ttsCancel = nil
	s.bargeInRequested = false
	s.mu.Unlock()
	cancelTTS()
	if !wasBarged {
		s.sink.FlushTail()
	}
	return strings.TrimSpace(spokenBuilder.String()), wasBarged
}

// FeedPCM16KLE sends input audio to the transcriber.
func (s *Session) FeedPCM16KLE(pcm []byte) {
	_ = s.transcriber.SendPCM16KLE(pcm)
}

type nopSink struct{}

func (nopSink) WritePCM(_ []byte) {}
func (nopSink) FlushTail()        {}
func (nopSink) Reset()            {}

// IsSpeaking reports whether TTS is currently active for this session.
func (s *Session) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// BargeIn cancels current TTS streaming and prevents further audio from being written to the sink.
func (s *Session) BargeIn() {
	s.mu.Lock()
	cancel := s.ttsCancel
	if s.speaking {
		s.bargeInRequested = true
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	// Drop any queued audio immediately so interruption feels instant
	s.sink.Reset()
}
