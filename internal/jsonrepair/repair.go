package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnrepairable is returned by Parse when no repair stage yields valid JSON.
var ErrUnrepairable = errors.New("jsonrepair: text is not repairable to valid JSON")

// Parse decodes text as JSON, applying progressively more aggressive repairs
// until one succeeds. Stages are ordered least to most destructive so that
// well-formed but decorated input (fences, prose) is never mangled by the
// brace-counting stages. Well-formed JSON always round-trips unchanged
// because stage 1 parses it as-is.
func Parse(text string) (any, error) {
	// Stage 1: as-is.
	if v, err := decode(text); err == nil {
		return v, nil
	}

	// Stage 2: drop markdown fences and trailing commas.
	s := StripTrailingCommas(StripFences(text))
	if v, err := decode(s); err == nil {
		return v, nil
	}

	// Stage 3: escape raw control characters inside string values.
	s = EscapeControlCharsInStrings(s)
	if v, err := decode(s); err == nil {
		return v, nil
	}

	// Stage 4: drop comment-like sequences.
	s = StripTrailingCommas(StripComments(s))
	if v, err := decode(s); err == nil {
		return v, nil
	}

	// Stage 5: slice the balanced span starting at the first brace, which
	// discards any prose surrounding the object.
	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := MatchBalanced(s, '{', '}', start); end > start {
			candidate := StripTrailingCommas(s[start : end+1])
			if v, err := decode(candidate); err == nil {
				return v, nil
			}
		}
	}

	// Stage 6: close unclosed containers (truncated mid-structure).
	if v, err := decode(StripTrailingCommas(CloseUnclosed(s))); err == nil {
		return v, nil
	}

	// Stage 7: terminate a dangling string literal, then rebalance.
	if UnescapedQuoteCount(s)%2 == 1 {
		candidate := StripTrailingCommas(CloseUnclosed(s + `"`))
		if v, err := decode(candidate); err == nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf("all repair stages exhausted: %w", ErrUnrepairable)
}

func decode(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty input")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
