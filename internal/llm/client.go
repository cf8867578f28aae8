// Package llm calls the generative model API. The API speaks the
// generateContent / streamGenerateContent protocol: request bodies carry
// contents with parts, responses carry candidates and usageMetadata with
// prompt and candidate token counts.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// GenerateRequest describes one model invocation.
type GenerateRequest struct {
	ModelID      string
	SystemPrompt string
	Prompt       string

	Temperature     float64
	MaxOutputTokens int

	// EnableSearch attaches the search-grounding tool. Deep mode uses it;
	// grounding chunks come back as tool events, not analysis text.
	EnableSearch bool
}

// GenerateResult is the accumulated output of one invocation.
type GenerateResult struct {
	Text         string
	ModelID      string
	FinishReason string

	PromptTokens int
	OutputTokens int
	TotalTokens  int

	// ToolEvents counts grounding/tool-invocation chunks seen during the
	// call. These never contribute to Text.
	ToolEvents int
}

// ProgressFunc receives human-readable progress notes during streaming
// generation. Calls must not block; slow consumers drop updates, they do not
// stall the stream.
type ProgressFunc func(note string)

// Generator is the model interface the orchestrator depends on.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest, progress ProgressFunc) (*GenerateResult, error)
}

// Client calls the model API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a model API client. timeout bounds a whole generation,
// not a single read, so it must accommodate long deep-mode calls.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ==== wire types ====

type apiRequest struct {
	Contents          []apiContent  `json:"contents"`
	SystemInstruction *apiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *apiGenConfig `json:"generationConfig,omitempty"`
	Tools             []apiTool     `json:"tools,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text         string          `json:"text,omitempty"`
	FunctionCall json.RawMessage `json:"functionCall,omitempty"`
}

type apiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type apiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content           apiContent      `json:"content"`
		FinishReason      string          `json:"finishReason"`
		GroundingMetadata json.RawMessage `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) buildRequest(req GenerateRequest) apiRequest {
	body := apiRequest{
		Contents: []apiContent{
			{Role: "user", Parts: []apiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &apiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &apiContent{Parts: []apiPart{{Text: req.SystemPrompt}}}
	}
	if req.EnableSearch {
		body.Tools = []apiTool{{GoogleSearch: &struct{}{}}}
	}
	return body
}

// Generate makes a blocking generateContent call.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, req.ModelID)
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("model API request",
		"model", req.ModelID,
		"prompt_length", len(req.Prompt),
		"search", req.EnableSearch,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("model API error",
			"model", req.ModelID,
			"status_code", resp.StatusCode,
			"response", truncateForLog(respBody),
		)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncateForLog(respBody))
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	result := &GenerateResult{ModelID: req.ModelID}
	accumulate(result, &parsed)
	return result, nil
}

// GenerateStream makes a streamGenerateContent call with SSE framing,
// accumulating text across chunks. progress, when non-nil, receives periodic
// notes; it is never called after GenerateStream returns.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest, progress ProgressFunc) (*GenerateResult, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, req.ModelID)
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncateForLog(respBody))
	}

	result := &GenerateResult{ModelID: req.ModelID}
	lastNote := time.Now()
	chunks := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk apiResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("skipping undecodable stream chunk", "error", err)
			continue
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("stream error (%s): %s", chunk.Error.Status, chunk.Error.Message)
		}
		accumulate(result, &chunk)
		chunks++

		if progress != nil && time.Since(lastNote) >= 2*time.Second {
			progress(fmt.Sprintf("analyzing... %d characters so far", len(result.Text)))
			lastNote = time.Now()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("stream complete",
		"model", req.ModelID,
		"chunks", chunks,
		"text_length", len(result.Text),
		"tool_events", result.ToolEvents,
	)
	return result, nil
}

// accumulate folds one response or stream chunk into result. Text parts
// append; tool and grounding parts only bump the counter. Usage metadata is
// cumulative in the stream, so later values replace earlier ones.
func accumulate(result *GenerateResult, resp *apiResponse) {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if len(part.FunctionCall) > 0 {
				result.ToolEvents++
				continue
			}
			result.Text += part.Text
		}
		if len(cand.GroundingMetadata) > 0 {
			result.ToolEvents++
		}
		if cand.FinishReason != "" {
			result.FinishReason = cand.FinishReason
		}
	}
	if resp.UsageMetadata.TotalTokenCount > 0 {
		result.PromptTokens = resp.UsageMetadata.PromptTokenCount
		result.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		result.TotalTokens = resp.UsageMetadata.TotalTokenCount
	}
}

// Truncated reports whether generation stopped at the output-token limit,
// which usually means the JSON payload is cut off mid-structure.
func (r *GenerateResult) Truncated() bool {
	return r.FinishReason == "MAX_TOKENS"
}

func truncateForLog(b []byte) string {
	const max = 500
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
