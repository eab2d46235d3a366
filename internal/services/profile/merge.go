package profile

import (
	"strings"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// Merge folds one analysis into the existing profile and returns the result.
// existing may be nil. Neither input is modified.
func Merge(existing *models.UserProfile, userID uuid.UUID, analysis models.ProfileAnalysis, now time.Time) *models.UserProfile {
	out := &models.UserProfile{UserID: userID}
	if existing != nil {
		out.ProfileAnalysis = existing.ProfileAnalysis
		out.AnalysisCount = existing.AnalysisCount
	}

	out.Profession = mergeScalar(out.Profession, analysis.Profession)
	out.Context = mergeScalar(out.Context, analysis.Context)
	out.CommunicationStyle = mergeScalar(out.CommunicationStyle, analysis.CommunicationStyle)
	if analysis.KnowledgeLevel.Valid() {
		out.KnowledgeLevel = analysis.KnowledgeLevel
	}
	if analysis.Confidence != nil {
		c := clamp01(*analysis.Confidence)
		out.Confidence = &c
	} else if out.Confidence != nil {
		c := *out.Confidence
		out.Confidence = &c
	}

	out.Interests = mergeList(out.Interests, analysis.Interests)
	out.Expertise = mergeList(out.Expertise, analysis.Expertise)
	out.Personality = mergeList(out.Personality, analysis.Personality)
	out.Goals = mergeList(out.Goals, analysis.Goals)
	out.RecentTopics = mergeList(out.RecentTopics, analysis.RecentTopics)

	out.AnalysisCount++
	out.LastUpdated = now
	return out
}

func mergeScalar(old, next string) string {
	if v := strings.TrimSpace(next); v != "" {
		return v
	}
	return old
}

// mergeList unions old and next without duplicates. Entries seen again in next
// move to the recent end; only the MaxProfileListEntries most recent are kept.
func mergeList(old, next []string) []string {
	incoming := make([]string, 0, len(next))
	seen := make(map[string]struct{}, len(next))
	for _, v := range next {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		incoming = append(incoming, v)
	}

	merged := make([]string, 0, len(old)+len(incoming))
	kept := make(map[string]struct{}, len(old))
	for _, v := range old {
		if _, renewed := seen[v]; renewed {
			continue
		}
		if _, dup := kept[v]; dup {
			continue
		}
		kept[v] = struct{}{}
		merged = append(merged, v)
	}
	merged = append(merged, incoming...)

	if len(merged) > models.MaxProfileListEntries {
		merged = merged[len(merged)-models.MaxProfileListEntries:]
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
