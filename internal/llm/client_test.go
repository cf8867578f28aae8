package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"analyze this"`) {
			t.Errorf("prompt not in request body: %s", body)
		}
		fmt.Fprint(w, `{
			"candidates": [{"content": {"parts": [{"text": "{\"summary\": \"ok\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 45, "totalTokenCount": 165}
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second, testLogger())
	res, err := c.Generate(context.Background(), GenerateRequest{
		ModelID: "gemini-2.5-flash",
		Prompt:  "analyze this",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != `{"summary": "ok"}` {
		t.Errorf("text = %q", res.Text)
	}
	if res.PromptTokens != 120 || res.OutputTokens != 45 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.OutputTokens)
	}
	if res.FinishReason != "STOP" {
		t.Errorf("finish reason = %q", res.FinishReason)
	}
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 429, "message": "quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	_, err := c.Generate(context.Background(), GenerateRequest{ModelID: "m", Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status 429", err)
	}
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q, want sse", r.URL.Query().Get("alt"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"candidates": [{"content": {"parts": [{"text": "{\"summary\": "}]}}]}`,
			`{"candidates": [{"content": {"parts": [{"functionCall": {"name": "search"}}]}}]}`,
			`{"candidates": [{"content": {"parts": [{"text": "\"done\"}"}]}, "finishReason": "STOP"}], "usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	res, err := c.GenerateStream(context.Background(), GenerateRequest{ModelID: "m", Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if res.Text != `{"summary": "done"}` {
		t.Errorf("text = %q", res.Text)
	}
	if res.ToolEvents != 1 {
		t.Errorf("tool events = %d, want 1", res.ToolEvents)
	}
	if res.TotalTokens != 30 {
		t.Errorf("total tokens = %d", res.TotalTokens)
	}
}

func TestGenerateStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"error\": {\"code\": 500, \"status\": \"INTERNAL\", \"message\": \"boom\"}}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	_, err := c.GenerateStream(context.Background(), GenerateRequest{ModelID: "m", Prompt: "p"}, nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want stream error", err)
	}
}

func TestTruncated(t *testing.T) {
	r := &GenerateResult{FinishReason: "MAX_TOKENS"}
	if !r.Truncated() {
		t.Error("MAX_TOKENS not reported as truncated")
	}
	r.FinishReason = "STOP"
	if r.Truncated() {
		t.Error("STOP reported as truncated")
	}
}
