package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Jhoseto/factcheck-api/internal/http/mw"
	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/service"
)

// =============================================================================
// SSE Event Types
// =============================================================================

// SSEProgressEvent is sent periodically while the model is generating.
type SSEProgressEvent struct {
	Note string `json:"note" doc:"Human-readable progress note"`
}

// SSEResultEvent is sent once with the final analysis and billing summary.
type SSEResultEvent struct {
	AnalysisID    string         `json:"analysis_id"`
	Result        map[string]any `json:"result"`
	PointsCharged int            `json:"points_charged"`
	NewBalance    int            `json:"new_balance"`
	ModelID       string         `json:"model_id"`
	Retried       bool           `json:"retried"`
}

// SSEErrorEvent is sent when the analysis fails.
type SSEErrorEvent struct {
	Code    string `json:"code" doc:"Stable error code"`
	Message string `json:"message"`
}

// StreamHandler serves the SSE variant of the analyze endpoint.
type StreamHandler struct {
	analysisSvc *service.AnalysisService
	logger      *slog.Logger
}

// NewStreamHandler creates a new streaming analyze handler.
func NewStreamHandler(analysisSvc *service.AnalysisService, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{analysisSvc: analysisSvc, logger: logger}
}

// AnalyzeStream handles SSE streaming analysis requests.
// This is a raw HTTP handler (not Huma) to support SSE.
func (h *StreamHandler) AnalyzeStream(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetUserClaims(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var body AnalyzeRequestBody
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	// Generation can outlive the server's write timeout; disable it for
	// this response. Client disconnect still cancels via the request ctx.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	progress := func(note string) {
		sendSSEEvent(w, flusher, "progress", SSEProgressEvent{Note: note})
	}

	result, err := h.analysisSvc.AnalyzeStream(r.Context(), service.AnalysisRequest{
		UserID:      claims.UserID,
		RequestID:   middleware.GetReqID(r.Context()),
		ServiceType: models.ServiceType(body.ServiceType),
		Mode:        models.AnalysisMode(body.Mode),
		TargetURL:   body.URL,
		Content:     body.Content,
	}, progress)
	if err != nil {
		if r.Context().Err() != nil {
			// Client is gone; nothing to write.
			return
		}
		sendSSEEvent(w, flusher, "error", SSEErrorEvent{
			Code:    errorCode(err),
			Message: "analysis failed",
		})
		return
	}

	sendSSEEvent(w, flusher, "result", SSEResultEvent{
		AnalysisID:    result.AnalysisID,
		Result:        result.Parsed,
		PointsCharged: result.PointsCharged,
		NewBalance:    result.NewBalance,
		ModelID:       result.ModelID,
		Retried:       result.Retried,
	})
}

// sendSSEEvent writes a single SSE event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
