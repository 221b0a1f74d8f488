// Package extract pulls structured data out of free-form model output.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no syntactically complete JSON value could be
// found in the text.
var ErrNoJSON = errors.New("no valid JSON found in response")

// JSON returns the first well-formed JSON value embedded in text.
//
// A fenced ``` block (optionally tagged json) takes precedence over anything
// else in the text. Failing that, the text is scanned for the first balanced
// {...} or [...] candidate; brace characters inside string literals do not
// affect the balance. Surrounding prose is ignored in both cases.
func JSON(text string) ([]byte, error) {
	if candidate, ok := fencedBlock(text); ok {
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			return nil, fmt.Errorf("%w: fenced block is not valid JSON: %v", ErrNoJSON, err)
		}
		return []byte(candidate), nil
	}

	if candidate, ok := balancedCandidate(text); ok {
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
		}
		return []byte(candidate), nil
	}

	return nil, ErrNoJSON
}

// fencedBlock returns the interior of the first ``` fence, if the text
// contains a complete open/close pair.
func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}

	rest := text[open+3:]
	// Skip an optional language tag on the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && strings.TrimSpace(strings.ToLower(rest[:nl])) == "json" {
		rest = rest[nl+1:]
	}

	closing := strings.Index(rest, "```")
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:closing]), true
}

// balancedCandidate scans for the first { or [ and walks to its matching
// close bracket, skipping string literals so that braces inside quoted
// values are not counted.
func balancedCandidate(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

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
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
