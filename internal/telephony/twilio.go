package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/archive"
)

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Service places outbound calls for the fraud-verification scenario and
// archives completed call recordings.
type Service struct {
	config     Config
	store      archive.Store
	client     *twilio.RestClient
	httpClient *http.Client
}

func New(config Config, store archive.Store) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &Service{
		config:     config,
		store:      store,
		client:     client,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Dial starts an outbound call to the customer and points Twilio at our voice
// webhook. Returns the call SID.
func (s *Service) Dial(toNumber, voiceURL string) (string, error) {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.config.FromNumber)
	params.SetUrl(voiceURL)
	params.SetRecord(true)

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("create call: no SID in response")
	}
	return *resp.Sid, nil
}

func (s *Service) RegisterHandlers(e *echo.Echo) {
	e.POST("/twilio/voice", s.handleVoice, s.authMiddleware)
	e.POST("/twilio/recording-status", s.handleRecordingStatus, s.authMiddleware)
	e.POST("/twilio/dial", s.handleDial)
}

// handleDial is the operator endpoint that starts an outbound verification
// call to a customer.
func (s *Service) handleDial(c echo.Context) error {
	var in struct {
		To string `json:"to"`
	}
	if err := c.Bind(&in); err != nil || in.To == "" {
		return c.String(http.StatusBadRequest, "missing destination number")
	}
	voiceURL := buildURL(c.Request(), "/twilio/voice")
	sid, err := s.Dial(in.To, voiceURL)
	if err != nil {
		log.Printf("outbound dial to %s failed: %v", in.To, err)
		return c.String(http.StatusBadGateway, "dial failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"call_sid": sid})
}

func (s *Service) handleVoice(c echo.Context) error {
	params := c.Get("twilioParams").(map[string]string)
	log.Printf("Call from %s, CallSID: %s", params["From"], params["CallSid"])

	say := &twiml.VoiceSay{Message: "Hello, this is the fraud prevention team at your bank. This call is recorded."}
	record := &twiml.VoiceRecord{
		MaxLength:                     "300",
		PlayBeep:                      "false",
		RecordingStatusCallback:       buildURL(c.Request(), "/twilio/recording-status"),
		RecordingStatusCallbackMethod: "POST",
	}
	hangup := &twiml.VoiceHangup{}
	response, err := twiml.Voice([]twiml.Element{say, record, hangup})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

func (s *Service) handleRecordingStatus(c echo.Context) error {
	params := c.Get("twilioParams").(map[string]string)

	status := params["RecordingStatus"]
	recordingURL := params["RecordingUrl"]
	recordingSID := params["RecordingSid"]
	log.Printf("Recording status: %s, SID: %s", status, recordingSID)

	if status == "completed" && recordingURL != "" && s.store != nil {
		filename := fmt.Sprintf("recordings/recording_%s_%d.wav", recordingSID, time.Now().Unix())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.uploadRecording(ctx, recordingURL, filename); err != nil {
				log.Printf("Failed to upload recording: %v", err)
			} else {
				log.Printf("Recording uploaded: %s", filename)
			}
		}()
	}

	return c.String(http.StatusOK, "OK")
}

func (s *Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.AuthToken == "" {
			return c.String(http.StatusInternalServerError, "Missing TWILIO_AUTH_TOKEN")
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.String(http.StatusBadRequest, "Failed to read body")
		}
		formData, err := url.ParseQuery(string(body))
		if err != nil {
			return c.String(http.StatusBadRequest, "Failed to parse form")
		}

		params := make(map[string]string)
		for key, values := range formData {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		signature := c.Request().Header.Get("X-Twilio-Signature")
		requestURL := buildURL(c.Request(), c.Request().URL.Path)
		if !s.validateSignature(signature, requestURL, params) {
			return c.String(http.StatusUnauthorized, "Invalid signature")
		}

		c.Set("twilioParams", params)
		return next(c)
	}
}

// validateSignature checks X-Twilio-Signature: HMAC-SHA1 over the URL plus
// the form parameters sorted by key.
func (s *Service) validateSignature(signature, url string, params map[string]string) bool {
	data := url
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(s.config.AuthToken))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Service) uploadRecording(ctx context.Context, recordingURL, filename string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", recordingURL+".wav", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download recording failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return s.store.Upload(filename, "audio/wav", data)
}

func buildURL(r *http.Request, path string) string {
	scheme := "https"
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
		if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}
