package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meetgpt/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.DefaultLLMConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	return New(cfg, srv.Client())
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.FormValue("language"); got != "pt" {
			t.Errorf("unexpected language %q", got)
		}
		if got := r.FormValue("response_format"); got != "text" {
			t.Errorf("unexpected response_format %q", got)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if header.Filename != "standup.mp3" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.Write([]byte("hello world\n"))
	})

	got, err := c.Transcribe(context.Background(), "standup.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
}

func TestTranscribeErrorStatusPropagates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	})
	if _, err := c.Transcribe(context.Background(), "a.mp3", []byte("x")); err == nil {
		t.Fatal("expected error on 503")
	} else if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestTranscribeEmptyBodyIsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("   \n"))
	})
	if _, err := c.Transcribe(context.Background(), "a.mp3", []byte("x")); err == nil {
		t.Fatal("expected error on empty transcript")
	}
}

func TestTranscribeWithoutAPIKey(t *testing.T) {
	cfg := config.DefaultLLMConfig()
	c := New(cfg, nil)
	if _, err := c.Transcribe(context.Background(), "a.mp3", []byte("x")); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestSummarizePayloadAndResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Temperature != 0 {
			t.Errorf("expected temperature 0, got %v", payload.Temperature)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" || payload.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", payload.Messages)
		}
		if payload.Messages[1].Content != "####transcript####" {
			t.Errorf("unexpected user turn %q", payload.Messages[1].Content)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": " **Participants**: nobody "}},
			},
		})
	})

	got, err := c.Summarize(context.Background(), "####transcript####")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "**Participants**: nobody" {
		t.Fatalf("expected trimmed summary, got %q", got)
	}
}

func TestSummarizeEmptyChoices(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})
	if _, err := c.Summarize(context.Background(), "x"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
