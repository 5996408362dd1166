package structured

import (
	"encoding/json"
	"strings"
)

// ParseState classifies the outcome of parsing a (possibly truncated) JSON
// fragment (spec.md §4.F step 3).
type ParseState string

const (
	// StatePartial indicates the fragment could not be completed into valid
	// JSON even after repair (e.g. a bare "{" with nothing else yet).
	StatePartial ParseState = "partial-parse"
	// StateSuccessful indicates the fragment was already complete, valid JSON.
	StateSuccessful ParseState = "successful-parse"
	// StateRepaired indicates the fragment parsed only after closing
	// unterminated strings/containers.
	StateRepaired ParseState = "repaired-parse"
)

// ParsePartialJSON tolerantly parses a (possibly truncated) JSON document,
// closing any unterminated string, array, or object so that a best-effort
// prefix value can still be produced mid-stream.
func ParsePartialJSON(input string) (any, ParseState) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, StatePartial
	}

	var direct any
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct, StateSuccessful
	}

	repaired, ok := repair(trimmed)
	if !ok {
		return nil, StatePartial
	}
	var value any
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, StatePartial
	}
	return value, StateRepaired
}

// repair closes any unterminated string/array/object in s so it becomes
// syntactically parseable JSON, dropping a trailing dangling token (an
// incomplete key, a trailing comma, a partial literal/number) that cannot be
// completed safely.
func repair(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	lastNonSpace := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isSpace(c) {
			lastNonSpace = i
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if lastNonSpace < 0 {
		return "", false
	}

	if inString {
		// Truncate to the string boundary that was open, then close it.
		out = out + `"`
	} else {
		out = trimDanglingToken(out, stack)
	}

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			out += "}"
		case '[':
			out += "]"
		}
	}
	return out, true
}

// trimDanglingToken strips a trailing comma, colon, or incomplete
// true/false/null/number literal that would otherwise make the repaired
// document invalid once containers are closed.
func trimDanglingToken(s string, stack []byte) string {
	trimmed := strings.TrimRight(s, " \t\r\n")
	switch {
	case strings.HasSuffix(trimmed, ","):
		return trimmed[:len(trimmed)-1]
	case strings.HasSuffix(trimmed, ":"):
		return trimmed[:len(trimmed)-1]
	}
	// An incomplete literal/number at the very end (e.g. "tru", "12.") has no
	// closing delimiter to anchor on; leave it for json.Unmarshal to reject,
	// which correctly falls back to StatePartial upstream.
	_ = stack
	return trimmed
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
