package agent

import (
	"context"
	"time"
)

// Transcriber is the minimal interface for realtime STT.
// It must accept PCM 16kHz little-endian mono buffers and emit live and finalized text.
type Transcriber interface {
	Connect() error
	SendPCM16KLE(pcm []byte) error
	GetTranscripts() <-chan string
	Finalize() <-chan string
	// RecentlyDetectedVoice returns true if voice energy was seen within the given window.
	RecentlyDetectedVoice(window time.Duration) bool
	Close() error
}

// Message is one chat turn sent to or received from the model.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested invocation of a registered tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// Completion is the model's answer for one round: either assistant text or a
// set of tool calls to execute, never both.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// LLM generates one completion for the conversation so far.
type LLM interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (Completion, error)
}

// Tool exposes one scenario action to the model. Handlers return a short
// human-readable result; failures are expected to be converted into
// explanatory strings before reaching the model.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     func(ctx context.Context, args string) (string, error)
}

// TTS streams 48kHz PCM mono audio for the given text.
type TTS interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// PCM48kSink consumes 48kHz PCM bytes and performs delivery (e.g., Opus encode to WebRTC).
// Implementations should buffer internally and pace delivery.
type PCM48kSink interface {
	WritePCM(pcm []byte)
	FlushTail()
	// Reset drops any queued frames immediately (used for barge-in).
	Reset()
}
