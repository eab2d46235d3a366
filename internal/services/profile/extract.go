package profile

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benvon/assistant-chat/internal/models"
)

// ErrNoJSONObject is returned when a response contains no balanced JSON object
var ErrNoJSONObject = errors.New("no JSON object in response")

// ExtractJSONObject returns the first balanced top-level {...} in text, ignoring braces inside strings
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
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
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSONObject
}

// ParseAnalysis extracts and decodes the analysis object from a model response
func ParseAnalysis(text string) (models.ProfileAnalysis, error) {
	var a models.ProfileAnalysis

	obj, err := ExtractJSONObject(text)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return a, fmt.Errorf("failed to decode profile analysis: %w", err)
	}
	return a, nil
}
