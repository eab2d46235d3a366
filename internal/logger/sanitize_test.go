package logger

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "empty", input: "", max: 10, want: ""},
		{name: "control chars removed", input: "a\x00b\x1bc\nd", max: 10, want: "abc\nd"},
		{name: "invalid utf8 repaired", input: "ok\xffok", max: 10, want: "okok"},
		{name: "truncated", input: "abcdefghij", max: 4, want: "abcd..."},
		{name: "no split rune", input: "你好世界", max: 4, want: "你..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SanitizeString(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	long := "/" + strings.Repeat("a", MaxPathLength+10)
	if got := SanitizePath(long); len(got) != MaxPathLength+3 {
		t.Errorf("len(SanitizePath(long)) = %d", len(got))
	}
	if got := SanitizePath("/api/v1/conversations\r\n/x"); got != "/api/v1/conversations\r\n/x" {
		t.Errorf("SanitizePath() = %q", got)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if SanitizeError(nil) != "" {
		t.Error("nil error should sanitize to empty string")
	}
	if got := SanitizeError(errors.New("bad\x00thing")); got != "badthing" {
		t.Errorf("SanitizeError() = %q", got)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{false, true} {
		l, err := New("test", true, dev)
		if err != nil {
			t.Fatalf("New(dev=%v) error = %v", dev, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("debug level not enabled (dev=%v)", dev)
		}
	}
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v", err)
	}
}
