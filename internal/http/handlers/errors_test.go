package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a StatusError", err)
	}
	return se.GetStatus()
}

func TestNewAnalysisErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient points", errkind.New(errkind.InsufficientPoints, "need 10 points, have 3"), http.StatusPaymentRequired},
		// Configuration and data-integrity faults surface as server errors,
		// never as user validation failures.
		{"unknown service type", errkind.New(errkind.UnknownServiceType, "unknown service type"), http.StatusInternalServerError},
		{"user not found", errkind.New(errkind.UserNotFound, "no balance record"), http.StatusInternalServerError},
		{"empty response", errkind.New(errkind.AIEmptyResponse, "model returned nothing"), http.StatusBadGateway},
		{"invalid format", errkind.New(errkind.AIInvalidFormat, "no JSON found"), http.StatusBadGateway},
		{"parse error", errkind.New(errkind.AIJSONParseError, "unrepairable"), http.StatusBadGateway},
		{"incomplete response", errkind.New(errkind.AIIncompleteResponse, "missing fields"), http.StatusBadGateway},
		{"generation failed", errkind.New(errkind.GenerationFailed, "upstream timeout"), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusOf(t, NewAnalysisError(tt.err)); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(errkind.New(errkind.InsufficientPoints, "x")); got != "INSUFFICIENT_POINTS" {
		t.Errorf("code = %q", got)
	}
	if got := errorCode(errors.New("boom")); got != "INTERNAL_ERROR" {
		t.Errorf("code = %q", got)
	}
}
