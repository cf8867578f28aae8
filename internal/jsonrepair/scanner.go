// Package jsonrepair recovers structured data from the malformed JSON that
// language models produce: markdown-fenced, truncated mid-string, decorated
// with prose, or littered with trailing commas and raw control characters.
//
// The scanner in this file is the single implementation of the string-aware
// scan (quote/escape state machine) shared by the repair stages and the
// response validator.
package jsonrepair

import (
	"fmt"
	"strings"
)

// MatchBalanced returns the index of the closer matching the opener at start,
// ignoring openers/closers that occur inside quoted strings. Returns -1 when
// s[start] is not the opener or no match exists.
func MatchBalanced(s string, open, close byte, start int) int {
	if start < 0 || start >= len(s) || s[start] != open {
		return -1
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// quoted content never affects depth
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// CountUnbalanced returns the net count of unmatched openers (opens minus
// closes) outside quoted strings. Negative means surplus closers.
func CountUnbalanced(s string, open, close byte) int {
	net := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			net++
		case c == close:
			net--
		}
	}
	return net
}

// UnescapedQuoteCount returns the number of double quotes that are not
// preceded by a backslash. An odd count implies an unterminated string.
func UnescapedQuoteCount(s string) int {
	count := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			count++
		}
	}
	return count
}

// CloseUnclosed appends the closers needed to terminate every container left
// open outside quoted strings, innermost first. If the text ends inside a
// string the string is left as-is; callers terminate it first (see Parse
// stage 7).
func CloseUnclosed(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// StripTrailingCommas removes commas that directly precede a closing brace or
// bracket (ignoring whitespace), outside quoted strings.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inString && c == '\\' {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if !inString && c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// StripComments removes //line and /* block */ sequences outside quoted
// strings. Models occasionally annotate their JSON; both forms are invalid.
func StripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inString && c == '\\' {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if !inString && c == '/' && i+1 < len(s) {
			if s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			}
			if s[i+1] == '*' {
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					i = len(s)
					continue
				}
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EscapeControlCharsInStrings rewrites raw control characters found inside
// quoted strings as their JSON escapes. Control characters outside strings
// (formatting whitespace) are left alone.
func EscapeControlCharsInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inString && c == '\\' {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if inString && c < 0x20 {
			switch c {
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteString(fmt.Sprintf(`\u%04x`, c))
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EscapeInteriorQuotes escapes double quotes inside string values that cannot
// be closing quotes. A quote is treated as closing only when the next
// non-space character is one of ':' ',' '}' ']' or end of input; anything
// else means the model emitted an unescaped interior quote.
func EscapeInteriorQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inString && c == '\\' {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if !inString {
			inString = true
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j >= len(s) || s[j] == ':' || s[j] == ',' || s[j] == '}' || s[j] == ']' {
			inString = false
			b.WriteByte(c)
			continue
		}
		b.WriteString(`\"`)
	}
	return b.String()
}

// StripFences removes markdown code-fence markers wherever they occur.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
