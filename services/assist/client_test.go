package assist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New("test-key", "test-model")
	if client == nil {
		t.Fatal("New returned nil despite an API key")
	}
	client.baseURL = server.URL
	return client
}

func completion(content string) string {
	return `{"choices": [{"message": {"content": ` + mustQuote(content) + `}}]}`
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestNewWithoutKeyReturnsNil(t *testing.T) {
	if New("", "whatever") != nil {
		t.Error("New without a key should return nil")
	}
}

func TestIdentifyByDescription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "man stranded on an island with a volleyball" {
			t.Errorf("messages = %+v", req.Messages)
		}
		w.Write([]byte(completion("  Cast Away\n")))
	})

	title, err := client.IdentifyByDescription(context.Background(), "man stranded on an island with a volleyball")
	if err != nil {
		t.Fatalf("IdentifyByDescription failed: %v", err)
	}
	if title != "Cast Away" {
		t.Errorf("title = %q, expected the trimmed answer", title)
	}
}

func TestIdentifyNotFoundSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("NOT_FOUND")))
	})

	title, err := client.IdentifyByDescription(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("IdentifyByDescription failed: %v", err)
	}
	if title != "" {
		t.Errorf("title = %q, expected empty for the sentinel", title)
	}
}

func TestIdentifySentinelInsideAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("I think the answer is not_found, sorry")))
	})

	title, err := client.IdentifyByDescription(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("IdentifyByDescription failed: %v", err)
	}
	if title != "" {
		t.Errorf("title = %q, the sentinel match must be case-insensitive", title)
	}
}

func TestCompleteErrorStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := client.SuggestRandom(context.Background()); err == nil {
		t.Error("expected an error for a non-200 status")
	}
}

func TestCompleteAPIErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "invalid model"}}`))
	})

	if _, err := client.SuggestByMood(context.Background(), "cozy"); err == nil {
		t.Error("expected the embedded API error to surface")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	if _, err := client.SuggestRandom(context.Background()); err == nil {
		t.Error("expected an error when the response has no choices")
	}
}

func TestSuggestByMood(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Messages[1].Content != "something cozy for a rainy evening" {
			t.Errorf("mood not forwarded: %+v", req.Messages)
		}
		w.Write([]byte(completion("Amélie")))
	})

	title, err := client.SuggestByMood(context.Background(), "something cozy for a rainy evening")
	if err != nil {
		t.Fatalf("SuggestByMood failed: %v", err)
	}
	if title != "Amélie" {
		t.Errorf("title = %q", title)
	}
}
