package rtc

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/archive"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/barge"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/llm"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/scenario"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/transcript"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/tts"
)

// SessionDescription is a small DTO so transport code never sees webrtc types.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Handler answers WebRTC offers and runs one agent session per connection.
type Handler struct {
	assemblyAIKey  string
	cerebrasAPIKey string
	llmModel       string
	deepgramAPIKey string
	deepgramVoice  string
	deps           scenario.Deps
	archiver       *archive.Archiver
}

func NewHandler(assemblyAIKey string, deps scenario.Deps) *Handler {
	return &Handler{assemblyAIKey: assemblyAIKey, deps: deps}
}

func (h *Handler) WithLLM(apiKey, model string) *Handler {
	h.cerebrasAPIKey, h.llmModel = apiKey, model
	return h
}

func (h *Handler) WithTTS(apiKey, voice string) *Handler {
	h.deepgramAPIKey, h.deepgramVoice = apiKey, voice
	return h
}

func (h *Handler) WithArchiver(a *archive.Archiver) *Handler {
	h.archiver = a
	return h
}

// HandleOffer accepts an SDP offer for the named scenario and returns an SDP
// answer. The agent's persona and tools are fixed for the whole call.
func (h *Handler) HandleOffer(ctx context.Context, scenarioName string, offer SessionDescription) (SessionDescription, error) {
	if offer.Type != "offer" || offer.SDP == "" {
		return SessionDescription{}, errors.New("invalid offer")
	}

	sc, err := scenario.Build(scenarioName, h.deps)
	if err != nil {
		return SessionDescription{}, err
	}

	callID := generateCallID()
	startAt := time.Now()

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return SessionDescription{}, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return SessionDescription{}, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	peerConnection, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}})
	if err != nil {
		return SessionDescription{}, err
	}

	outTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1}, "agent-audio", "agent")
	if err != nil {
		_ = peerConnection.Close()
		return SessionDescription{}, err
	}
	if _, err := peerConnection.AddTrack(outTrack); err != nil {
		_ = peerConnection.Close()
		return SessionDescription{}, err
	}

	transcriber := transcript.NewStreamer(h.assemblyAIKey)
	llmClient := llm.NewCerebrasClient(h.cerebrasAPIKey, ifEmpty(h.llmModel, "llama-4-maverick-17b-128e-instruct"))
	synth := tts.NewSynthesizer(h.deepgramAPIKey, h.deepgramVoice)

	var (
		transcriptMu sync.Mutex
		turns        []archive.Turn
	)

	// pion keeps a single OnConnectionStateChange handler, so every piece of
	// shutdown work funnels through one teardown chain registered exactly once.
	down := newTeardown()
	down.add(func() {
		transcriptMu.Lock()
		snapshot := make([]archive.Turn, len(turns))
		copy(snapshot, turns)
		transcriptMu.Unlock()
		log.Printf("[%s] Conversation ended with %d turns", callID, len(snapshot))
		if err := h.archiver.SaveTranscript(archive.Record{
			CallID:   callID,
			Scenario: scenarioName,
			StartAt:  startAt,
			EndAt:    time.Now(),
			Turns:    snapshot,
		}); err != nil {
			log.Printf("[%s] transcript archive failed: %v", callID, err)
		}
		_ = transcriber.Close()
		_ = peerConnection.Close()
	})

	peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[%s] PeerConnection state: %s", callID, state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			down.run()
		}
	})

	var sessPtr atomic.Pointer[agent.Session]
	var pacedPtr atomic.Pointer[OpusPacedWriter]
	peerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "control" {
			return
		}
		log.Printf("[%s] Control channel opened", callID)
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			switch string(msg.Data) {
			case "stop", "stop-speaking", "cancel", "barge-in":
				if s := sessPtr.Load(); s != nil {
					s.BargeIn()
				}
				if p := pacedPtr.Load(); p != nil {
					p.Reset()
				}
			}
		})
	})
	peerConnection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("[%s] ICE state: %s", callID, state.String())
	})

	peerConnection.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Printf("[%s] Remote audio track received: codec=%s", callID, remote.Codec().MimeType)

		paced, err := NewOpusPacedWriter(outTrack)
		if err != nil {
			log.Printf("[%s] Opus encoder error: %v", callID, err)
			return
		}
		pacedPtr.Store(paced)

		detector := barge.NewDetector(barge.DefaultWebRTC(), barge.Events{
			OnTTSStop: func(time.Time) {
				if s := sessPtr.Load(); s != nil {
					s.BargeIn()
				}
			},
			OnTrigger: func(_ time.Time, cues barge.Cues, _ []byte) {
				log.Printf("[%s] barge-in (vad=%v asr=%v): dropping queued audio", callID, cues.VAD, cues.ASR)
				paced.Reset()
			},
		})

		sess := agent.NewSession(
			transcriber,
			llmClient,
			synth,
			paced,
			agent.WithInstructions(sc.Instructions),
			agent.WithTools(sc.Tools),
			agent.WithTranscriptCallback(func(partial string) {
				detector.NotifyPartial(partial)
			}),
			agent.WithTurnCallback(func(user, assistantSpoken string) {
				transcriptMu.Lock()
				turns = append(turns, archive.Turn{Role: "USER", Text: user, At: time.Now()})
				if assistantSpoken != "" {
					turns = append(turns, archive.Turn{Role: "ASSISTANT", Text: assistantSpoken, At: time.Now()})
				}
				transcriptMu.Unlock()
				detector.NotifyTTSText(assistantSpoken)
				detector.Reset()
				if assistantSpoken != "" {
					log.Printf("[%s] SPOKEN assistant: %s", callID, assistantSpoken)
				}
			}),
		)
		sessPtr.Store(sess)

		startMicReader := func(dec *opus.Decoder) {
			go func() {
				const pcm16kChunkBytes = 3200
				pcmSamples := make([]int16, 1920)
				buf := make([]byte, 0, pcm16kChunkBytes*4)
				for {
					pkt, _, readErr := remote.ReadRTP()
					if readErr != nil {
						log.Printf("[%s] RTP read error: %v", callID, readErr)
						return
					}
					if len(pkt.Payload) == 0 {
						continue
					}
					n, decErr := dec.Decode(pkt.Payload, pcmSamples)
					if decErr != nil {
						log.Printf("[%s] Opus decode error: %v", callID, decErr)
						continue
					}
					startLen := len(buf)
					need := n * 2
					if cap(buf)-len(buf) < need {
						tmp := make([]byte, len(buf), len(buf)+need+pcm16kChunkBytes)
						copy(tmp, buf)
						buf = tmp
					}
					buf = buf[:len(buf)+need]
					o := buf[startLen:]
					for i := 0; i < n; i++ {
						binary.LittleEndian.PutUint16(o[i*2:(i+1)*2], uint16(pcmSamples[i]))
					}
					for len(buf) >= pcm16kChunkBytes {
						chunk := buf[:pcm16kChunkBytes]
						detector.FeedMic16k(chunk)
						if err := transcriber.SendPCM16KLE(chunk); err != nil {
							log.Printf("[%s] AAI send error: %v", callID, err)
						}
						copy(buf, buf[pcm16kChunkBytes:])
						buf = buf[:len(buf)-pcm16kChunkBytes]
					}
				}
			}()
		}

		doneCh := make(chan struct{})
		down.add(func() {
			select {
			case <-doneCh:
			default:
				close(doneCh)
			}
		})

		if err := transcriber.Connect(); err != nil {
			log.Printf("[%s] Failed to connect to AssemblyAI (assistant replies disabled): %v", callID, err)
			return
		}
		dec, derr := opus.NewDecoder(16000, 1)
		if derr != nil {
			log.Printf("[%s] Opus decoder error: %v", callID, derr)
			return
		}
		startMicReader(dec)
		ctxSess, cancelSess := context.WithCancel(context.Background())
		stop, err := sess.Start(ctxSess)
		if err != nil {
			log.Printf("[%s] session start error: %v", callID, err)
		}

		// Mirror the speaking state into the barge detector.
		go func() {
			t := time.NewTicker(20 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-ctxSess.Done():
					return
				case <-doneCh:
					return
				case <-t.C:
					detector.SetSpeaking(sess.IsSpeaking())
				}
			}
		}()

		down.add(func() {
			cancelSess()
			if stop != nil {
				stop()
			}
			paced.FlushTail()
			time.AfterFunc(400*time.Millisecond, func() { paced.Close() })
		})
	})

	remoteOffer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := peerConnection.SetRemoteDescription(remoteOffer); err != nil {
		_ = peerConnection.Close()
		return SessionDescription{}, err
	}
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		_ = peerConnection.Close()
		return SessionDescription{}, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)
	if err := peerConnection.SetLocalDescription(answer); err != nil {
		_ = peerConnection.Close()
		return SessionDescription{}, err
	}
	<-gatherComplete
	local := peerConnection.LocalDescription()
	if local == nil {
		_ = peerConnection.Close()
		return SessionDescription{}, errors.New("no local description")
	}
	return SessionDescription{Type: "answer", SDP: local.SDP}, nil
}

// teardown collects shutdown work from the different stages of a call and
// runs it exactly once, newest-first, so per-track cleanup happens before the
// transcript is archived and the connection closed.
type teardown struct {
	mu   sync.Mutex
	fns  []func()
	done bool
}

func newTeardown() *teardown { return &teardown{} }

func (t *teardown) add(fn func()) {
	t.mu.Lock()
	t.fns = append(t.fns, fn)
	t.mu.Unlock()
}

func (t *teardown) run() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	fns := make([]func(), len(t.fns))
	copy(fns, t.fns)
	t.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

func generateCallID() string { return time.Now().Format("0102150405.000") }
