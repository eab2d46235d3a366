package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxPathLength          = 500
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizePath bounds a request path for logs and error bodies
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError renders err for a log field. Provider errors can echo user
// content back, so they get the same treatment as any other untrusted string.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeString drops invalid UTF-8 and non-printing runes (keeping whitespace
// controls) and cuts the result at maxLength bytes on a rune boundary.
// maxLength <= 0 means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(keepRune, strings.ToValidUTF8(s, ""))
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func keepRune(r rune) rune {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return r
	case unicode.IsPrint(r):
		return r
	}
	return -1
}
