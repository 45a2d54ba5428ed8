package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyModelResponse rejects empty/whitespace-only provider output before
// any parsing is attempted.
var ErrEmptyModelResponse = errors.New("empty model response")

// DecodeError keeps the original raw text for diagnostics; a parse failure is
// never silently turned into a partial object.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// stripCodeFence removes a leading/trailing fenced block, tagged ("```json")
// or untagged ("```"). Models wrap structured output this way routinely.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// drop the optional language tag on the opening fence line
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && !strings.ContainsAny(trimmed[:idx], "{}") {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// firstObjectSpan returns the first top-level {...} span in text, matching
// braces while skipping string literals. Defends against providers that wrap
// the JSON in prose.
func firstObjectSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeModelJSON extracts a typed object from an unstructured model payload.
// Shape validation beyond valid JSON is the caller's business.
func DecodeModelJSON[T any](raw string) (*T, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyModelResponse
	}
	cleaned := stripCodeFence(raw)
	var out T
	err := json.Unmarshal([]byte(cleaned), &out)
	if err == nil {
		return &out, nil
	}
	// the model may wrap the object in prose on either side
	if span, ok := firstObjectSpan(cleaned); ok {
		var fromSpan T
		if json.Unmarshal([]byte(span), &fromSpan) == nil {
			return &fromSpan, nil
		}
	}
	return nil, &DecodeError{Raw: raw, Err: err}
}
