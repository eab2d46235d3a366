package chat

import (
	"strings"
)

const (
	maxTitleRunes    = 30
	maxSentenceRunes = 50
	sentenceEnders   = ".!?。！？"
)

// DeriveTitle builds a conversation title from the first user message.
// Whitespace is collapsed; short text is used as is, otherwise a short leading
// sentence, otherwise the first 30 characters with an ellipsis.
func DeriveTitle(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	r := []rune(s)
	if len(r) <= maxTitleRunes {
		return s
	}

	// the sentence needs some text before its first terminator
	for i := 0; i < len(r) && i < maxSentenceRunes; i++ {
		if strings.ContainsRune(sentenceEnders, r[i]) {
			if i == 0 {
				break
			}
			return string(r[:i+1])
		}
	}

	return string(r[:maxTitleRunes]) + "..."
}
