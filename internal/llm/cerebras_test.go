package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
)

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Complete(ctx, []agent.Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewCerebrasClient("key", "model")
			c.Endpoint = srv.URL
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.Complete(ctx, []agent.Message{{Role: "user", Content: "hi"}}, nil); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_TextCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello there  "}}]}`))
	}))
	defer srv.Close()
	c := NewCerebrasClient("key", "model")
	c.Endpoint = srv.URL

	got, err := c.Complete(context.Background(), []agent.Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Text != "  hello there  " || len(got.ToolCalls) != 0 {
		t.Fatalf("unexpected completion: %+v", got)
	}
}

func TestCerebras_ToolCallsAndWireFormat(t *testing.T) {
	var gotReq chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{
			"role":"assistant",
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"add_to_cart","arguments":"{\"item\":\"milk\"}"}}]
		}}]}`))
	}))
	defer srv.Close()
	c := NewCerebrasClient("key", "model")
	c.Endpoint = srv.URL

	tools := []agent.Tool{{
		Name:        "add_to_cart",
		Description: "add an item",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"item": map[string]any{"type": "string"}},
			"required":   []string{"item"},
		},
	}}
	got, err := c.Complete(context.Background(), []agent.Message{
		{Role: "system", Content: "grocer"},
		{Role: "user", Content: "add milk"},
	}, tools)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %+v", got)
	}
	call := got.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "add_to_cart" || call.Arguments != `{"item":"milk"}` {
		t.Fatalf("unexpected call: %+v", call)
	}

	// request carried the tool declaration
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "add_to_cart" || gotReq.Tools[0].Type != "function" {
		t.Fatalf("tools not sent on the wire: %+v", gotReq.Tools)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("messages not sent as given: %+v", gotReq.Messages)
	}
}
