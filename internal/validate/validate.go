// Package validate decides whether a model response is worth charging for.
// The caller bills the user only when validation passes, so this check is
// the one defense against charging for an empty, garbled, or truncated
// answer. It must be strict enough to catch truncation and lenient enough to
// accept stylistic variation.
package validate

import (
	"strings"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/jsonrepair"
	"github.com/Jhoseto/factcheck-api/internal/models"
)

// Outcome is a successfully validated response.
type Outcome struct {
	Parsed map[string]any
}

// Response validates raw model output for the given service type. It returns
// an errkind error (AIEmptyResponse, AIInvalidFormat, AIJSONParseError,
// AIIncompleteResponse) when the output cannot be billed.
func Response(raw string, serviceType models.ServiceType) (*Outcome, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 10 {
		return nil, errkind.New(errkind.AIEmptyResponse, "model returned %d bytes", len(trimmed))
	}

	span, err := extract(trimmed)
	if err != nil {
		return nil, err
	}

	normalized := normalize(span)
	parsed, err := jsonrepair.Parse(normalized)
	if err != nil {
		return nil, errkind.Wrap(errkind.AIJSONParseError, err, "unparseable response: %s", excerpt(normalized))
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, errkind.New(errkind.AIIncompleteResponse, "response root is not an object")
	}
	if err := checkComplete(obj, serviceType); err != nil {
		return nil, err
	}
	return &Outcome{Parsed: obj}, nil
}

// extract locates the JSON payload inside the raw text. A fenced ```json
// block wins; otherwise the balanced span starting at the first opener, with
// a last-closer fallback when matching fails.
func extract(s string) (string, error) {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), nil
		}
		// Unterminated fence, typically truncation. Keep the remainder and
		// let repair close it.
		return strings.TrimSpace(rest), nil
	}
	s = jsonrepair.StripFences(s)

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start, open, close := objStart, byte('{'), byte('}')
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start, open, close = arrStart, '[', ']'
	}
	if start < 0 {
		return "", errkind.New(errkind.AIInvalidFormat, "no JSON object or array in response: %s", excerpt(s))
	}
	if end := jsonrepair.MatchBalanced(s, open, close, start); end > start {
		return s[start : end+1], nil
	}
	// Unbalanced. Take everything up to the last closer if one exists,
	// otherwise the whole tail and let repair rebalance.
	if last := strings.LastIndexByte(s, close); last > start {
		return s[start : last+1], nil
	}
	return s[start:], nil
}

func normalize(s string) string {
	s = jsonrepair.StripTrailingCommas(s)
	s = jsonrepair.StripComments(s)
	s = jsonrepair.EscapeControlCharsInStrings(s)
	s = jsonrepair.EscapeInteriorQuotes(s)
	return s
}

// checkComplete applies the per-service completeness rules.
func checkComplete(obj map[string]any, serviceType models.ServiceType) error {
	switch serviceType {
	case models.ServiceVideo:
		// Title is deliberately not required: the caller already has it from
		// its own metadata source.
		if !hasString(obj, "summary", 10) {
			return errkind.New(errkind.AIIncompleteResponse, "video analysis missing usable summary")
		}
		if hasArray(obj, "claims") || hasArray(obj, "quotes") ||
			hasArray(obj, "manipulationTechniques") ||
			(obj["overallAssessment"] != nil && obj["detailedMetrics"] != nil) {
			return nil
		}
		return errkind.New(errkind.AIIncompleteResponse, "video analysis has no claims, quotes, techniques, or assessment")
	default:
		if !hasString(obj, "title", 5) {
			return errkind.New(errkind.AIIncompleteResponse, "missing or trivial title")
		}
		if !hasString(obj, "siteName", 0) {
			return errkind.New(errkind.AIIncompleteResponse, "missing siteName")
		}
		if !hasString(obj, "summary", 20) {
			return errkind.New(errkind.AIIncompleteResponse, "missing or trivial summary")
		}
		return nil
	}
}

func hasString(obj map[string]any, key string, minLen int) bool {
	s, ok := obj[key].(string)
	return ok && len(strings.TrimSpace(s)) > minLen
}

func hasArray(obj map[string]any, key string) bool {
	arr, ok := obj[key].([]any)
	return ok && len(arr) > 0
}

func excerpt(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
