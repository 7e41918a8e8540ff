package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func signFor(token, url string, params map[string]string) string {
	data := url
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// deterministic order for the two-key test payloads
	if len(keys) == 2 && keys[0] > keys[1] {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	s := New(Config{AccountSID: "AC123", AuthToken: "secret"}, nil)
	url := "https://example.com/twilio/voice"
	params := map[string]string{"CallSid": "CA1", "From": "+15550001111"}

	good := signFor("secret", url, params)
	if !s.validateSignature(good, url, params) {
		t.Fatalf("expected valid signature to pass")
	}
	if s.validateSignature(good, url, map[string]string{"CallSid": "CA2"}) {
		t.Fatalf("expected tampered params to fail")
	}
	if s.validateSignature("bogus", url, params) {
		t.Fatalf("expected bad signature to fail")
	}
}

func TestAuthMiddleware_RejectsUnsigned(t *testing.T) {
	s := New(Config{AccountSID: "AC123", AuthToken: "secret"}, nil)
	e := echo.New()
	s.RegisterHandlers(e)

	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader("CallSid=CA1"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned request, got %d", rec.Code)
	}
}

func TestDial_MissingNumberRejected(t *testing.T) {
	s := New(Config{AccountSID: "AC123", AuthToken: "secret"}, nil)
	e := echo.New()
	s.RegisterHandlers(e)

	req := httptest.NewRequest(http.MethodPost, "/twilio/dial", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without destination, got %d", rec.Code)
	}
}

func TestHandleVoice_ReturnsParseableTwiML(t *testing.T) {
	s := New(Config{AccountSID: "AC123", AuthToken: "secret"}, nil)
	e := echo.New()
	s.RegisterHandlers(e)

	url := "http://localhost/twilio/voice"
	params := map[string]string{"CallSid": "CA1", "From": "+15550001111"}
	sig := signFor("secret", url, params)

	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader("CallSid=CA1&From=%2B15550001111"))
	req.Host = "localhost"
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("X-Twilio-Signature", sig)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("expected application/xml content type, got %q", ct)
	}
	body := rec.Body.String()
	// Twilio parses the body as TwiML, so the verbs must arrive as raw
	// elements, not XML-escaped text
	if strings.Contains(body, "&lt;") {
		t.Fatalf("TwiML was XML-escaped: %s", body)
	}
	for _, verb := range []string{"<Response>", "<Say>", "<Record", "<Hangup", "/twilio/recording-status"} {
		if !strings.Contains(body, verb) {
			t.Fatalf("TwiML missing %s: %s", verb, body)
		}
	}
}

func TestAuthMiddleware_AcceptsSigned(t *testing.T) {
	s := New(Config{AccountSID: "AC123", AuthToken: "secret"}, nil)
	e := echo.New()
	s.RegisterHandlers(e)

	body := "CallSid=CA1"
	url := "http://localhost/twilio/voice"
	sig := signFor("secret", url, map[string]string{"CallSid": "CA1"})

	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(body))
	req.Host = "localhost"
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("X-Twilio-Signature", sig)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed request, got %d (%s)", rec.Code, rec.Body.String())
	}
}
