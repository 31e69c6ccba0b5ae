package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"goalsectors-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o-mini", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func useServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	oldURL := apiURL
	server := httptest.NewServer(handler)
	apiURL = server.URL
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
	})
}

func TestCompleteSendsConversationInJSONMode(t *testing.T) {
	var mu sync.Mutex
	var lastBody map[string]any
	var lastAuth string

	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		lastBody = payload
		lastAuth = r.Header.Get("Authorization")
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"assistant_message\":\"hi\",\"actions\":[]} "}}]}`))
	})

	client, err := NewClient("test-key", "gpt-4o-mini", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "persona"},
		{Role: llm.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"assistant_message":"hi","actions":[]}` {
		t.Fatalf("unexpected content: %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if lastAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", lastAuth)
	}
	format, _ := lastBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", lastBody["response_format"])
	}
	messages, _ := lastBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if _, ok := lastBody["temperature"]; !ok {
		t.Fatalf("expected temperature for gpt-4o-mini")
	}
}

func TestCompleteClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   llm.Kind
	}{
		{status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`, want: llm.KindAuth},
		{status: http.StatusForbidden, body: `forbidden`, want: llm.KindAuth},
		{status: http.StatusTooManyRequests, body: `{"error":{"message":"quota","type":"insufficient_quota"}}`, want: llm.KindQuota},
		{status: http.StatusBadGateway, body: `upstream`, want: llm.KindTransient},
		{status: http.StatusBadRequest, body: `{"error":{"message":"bad","type":"invalid_request_error"}}`, want: llm.KindOther},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			useServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client, err := NewClient("test-key", "gpt-4o-mini", time.Second)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}})
			var perr *llm.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if perr.Status != tt.status || llm.Classify(err) != tt.want {
				t.Fatalf("status=%d kind=%s, want %d %s", perr.Status, llm.Classify(err), tt.status, tt.want)
			}
		})
	}
}

func TestCompleteEmptyChoicesIsBadResponse(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	client, err := NewClient("test-key", "gpt-4o-mini", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), nil)
	if llm.Classify(err) != llm.KindBadResponse {
		t.Fatalf("expected bad_response, got %v", err)
	}
}

func TestNewClientWithoutKey(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini", time.Second); !errors.Is(err, llm.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if _, err := NewClient("key", "", time.Second); err == nil {
		t.Fatalf("expected error for missing model")
	}
}
