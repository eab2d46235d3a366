package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benvon/assistant-chat/internal/models"
)

// identityChunkRunes is the fragment size used to stream shortcut answers
const identityChunkRunes = 16

// IdentityMatcher detects "who am I to you" questions
type IdentityMatcher struct {
	patterns []*regexp.Regexp
}

// NewIdentityMatcher compiles the given patterns
func NewIdentityMatcher(patterns []string) (*IdentityMatcher, error) {
	m := &IdentityMatcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid identity pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether content asks what the assistant knows about the user
func (m *IdentityMatcher) Match(content string) bool {
	s := strings.TrimSpace(content)
	if s == "" {
		return false
	}
	for _, re := range m.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// profileIsEmpty reports whether the profile carries nothing worth showing
func profileIsEmpty(p *models.UserProfile) bool {
	if p == nil {
		return true
	}
	return p.Profession == "" &&
		p.Context == "" &&
		p.CommunicationStyle == "" &&
		p.KnowledgeLevel == "" &&
		len(p.Interests) == 0 &&
		len(p.Expertise) == 0 &&
		len(p.Personality) == 0 &&
		len(p.Goals) == 0 &&
		len(p.RecentTopics) == 0
}

// RenderProfileSummary renders the deterministic Markdown answer to an identity question
func RenderProfileSummary(p *models.UserProfile, phrases Phrases) string {
	if profileIsEmpty(p) {
		return phrases.NotEnoughData
	}

	l := phrases.Labels
	sep := phrases.ListSeparator

	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(phrases.SummaryTitle)
	b.WriteString("\n\n")

	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", label, value)
	}
	line(l.Profession, p.Profession)
	line(l.Expertise, strings.Join(p.Expertise, sep))
	line(l.Interests, strings.Join(p.Interests, sep))
	line(l.KnowledgeLevel, string(p.KnowledgeLevel))
	line(l.CommunicationStyle, p.CommunicationStyle)
	line(l.Goals, strings.Join(p.Goals, sep))
	line(l.Personality, strings.Join(p.Personality, sep))
	line(l.RecentTopics, strings.Join(p.RecentTopics, sep))
	line(l.Context, p.Context)

	if l.Footer != "" {
		b.WriteString("\n_")
		fmt.Fprintf(&b, l.Footer, p.AnalysisCount, p.LastUpdated.Format("2006-01-02"))
		b.WriteString("_\n")
	}

	return b.String()
}

// chunkRunes splits s into pieces of at most n runes
func chunkRunes(s string, n int) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(r)/n+1)
	for start := 0; start < len(r); start += n {
		end := min(start+n, len(r))
		chunks = append(chunks, string(r[start:end]))
	}
	return chunks
}
