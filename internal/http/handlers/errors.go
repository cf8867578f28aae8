package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
)

// NewAnalysisError converts a service error into a Huma status error.
// Client faults (bad input, empty balance) keep their message; model and
// infrastructure faults get a stable code with the detail in the message.
func NewAnalysisError(err error) error {
	var e *errkind.Error
	if !errors.As(err, &e) {
		return huma.Error500InternalServerError("analysis failed")
	}

	// Data-integrity and configuration faults are ours, not the caller's.
	if errkind.IsServerFault(e.Kind) {
		return huma.Error500InternalServerError("analysis failed")
	}

	switch e.Kind {
	case errkind.InsufficientPoints:
		return huma.NewError(http.StatusPaymentRequired, e.Message, err)
	case errkind.AIEmptyResponse, errkind.AIInvalidFormat, errkind.AIJSONParseError, errkind.AIIncompleteResponse:
		// Model output faults are not the caller's doing and were not billed.
		return huma.Error502BadGateway(string(e.Kind))
	case errkind.GenerationFailed:
		return huma.Error502BadGateway("the analysis service is temporarily unavailable")
	default:
		return huma.Error500InternalServerError("analysis failed")
	}
}

// errorCode returns the stable machine-readable code for an error.
func errorCode(err error) string {
	if kind := errkind.KindOf(err); kind != "" {
		return string(kind)
	}
	return "INTERNAL_ERROR"
}
