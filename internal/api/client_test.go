package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeHaiku4_5_20251001,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeHaiku4_5_20251001 {
		t.Errorf("Model = %q", client.Model())
	}
	if client.Usage() != (Usage{}) {
		t.Errorf("new client usage = %+v", client.Usage())
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient should fail without API key")
	}
	expected := "ANTHROPIC_API_KEY environment variable is not set"
	if err.Error() != expected {
		t.Errorf("Error = %q, want %q", err.Error(), expected)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Default model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
}

func TestResolveModel(t *testing.T) {
	direct := &Client{}
	if got := direct.resolveModel(anthropic.ModelClaudeSonnet4_20250514); got != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("direct client resolved model to %q", got)
	}

	viaBedrock := &Client{bedrock: true}
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{anthropic.ModelClaudeHaiku4_5_20251001, "us.anthropic.claude-haiku-4-5-20251001-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
		{"anthropic.claude-v2", "anthropic.claude-v2"},
	}
	for _, tt := range tests {
		if got := viaBedrock.resolveModel(tt.in); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUsageString(t *testing.T) {
	u := Usage{Calls: 2, InputTokens: 300, OutputTokens: 150}
	if got := u.String(); got != "2 calls, 300 in / 150 out tokens" {
		t.Errorf("String = %q", got)
	}
}

// fakeMessagesServer answers POST /v1/messages with a fixed text response and
// records the last request body.
func fakeMessagesServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var last map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &last)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad prompt"}}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content": []map[string]string{
				{"type": "text", "text": reply},
				{"type": "text", "text": "second block"},
			},
			"usage": map[string]int{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestClient_Complete(t *testing.T) {
	srv, last := fakeMessagesServer(t, http.StatusOK, "rice is ready")

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.Complete(context.Background(), CompletionRequest{
		System: "You are the rice chef.",
		Prompt: "Cook the rice",
		Model:  anthropic.ModelClaudeHaiku4_5_20251001,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Text != "rice is ready\nsecond block" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.StopReason != "end_turn" {
		t.Errorf("StopReason = %q", got.StopReason)
	}
	if u := client.Usage(); u.Calls != 1 || u.InputTokens != 12 || u.OutputTokens != 7 {
		t.Errorf("usage = %+v", u)
	}

	req := *last
	if req["model"] != string(anthropic.ModelClaudeHaiku4_5_20251001) {
		t.Errorf("request model = %v", req["model"])
	}
	if req["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("request max_tokens = %v", req["max_tokens"])
	}
	if _, ok := req["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestClient_CompleteError(t *testing.T) {
	srv, _ := fakeMessagesServer(t, http.StatusBadRequest, "")

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if client.Usage().Calls != 0 {
		t.Error("failed call should not be tracked")
	}
}
