package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// KnowledgeLevel is the inferred expertise tier of a user
type KnowledgeLevel string

const (
	KnowledgeBeginner     KnowledgeLevel = "beginner"
	KnowledgeIntermediate KnowledgeLevel = "intermediate"
	KnowledgeExpert       KnowledgeLevel = "expert"
)

// Valid reports whether k is a known level
func (k KnowledgeLevel) Valid() bool {
	switch k {
	case KnowledgeBeginner, KnowledgeIntermediate, KnowledgeExpert:
		return true
	default:
		return false
	}
}

// MaxProfileListEntries caps every list field of a profile
const MaxProfileListEntries = 10

// ProfileAnalysis is the structured output of one analysis pass.
// Every field is optional; missing values never overwrite stored ones.
type ProfileAnalysis struct {
	Profession         string         `json:"profession,omitempty"`
	Interests          []string       `json:"interests,omitempty"`
	Expertise          []string       `json:"expertise,omitempty"`
	Personality        []string       `json:"personality,omitempty"`
	Goals              []string       `json:"goals,omitempty"`
	Context            string         `json:"context,omitempty"`
	CommunicationStyle string         `json:"communicationStyle,omitempty"`
	KnowledgeLevel     KnowledgeLevel `json:"knowledgeLevel,omitempty"`
	RecentTopics       []string       `json:"recentTopics,omitempty"`
	Confidence         *float64       `json:"confidence,omitempty"`
}

// UserProfile is the merged, persisted profile of a user.
// ProfileAnalysis keeps the key names the analysis model emits; the
// profile itself is served with the snake_case keys used across the API.
type UserProfile struct {
	UserID uuid.UUID
	ProfileAnalysis
	AnalysisCount int
	LastUpdated   time.Time
}

type userProfileJSON struct {
	UserID             uuid.UUID      `json:"user_id"`
	Profession         string         `json:"profession,omitempty"`
	Interests          []string       `json:"interests,omitempty"`
	Expertise          []string       `json:"expertise,omitempty"`
	Personality        []string       `json:"personality,omitempty"`
	Goals              []string       `json:"goals,omitempty"`
	Context            string         `json:"context,omitempty"`
	CommunicationStyle string         `json:"communication_style,omitempty"`
	KnowledgeLevel     KnowledgeLevel `json:"knowledge_level,omitempty"`
	RecentTopics       []string       `json:"recent_topics,omitempty"`
	Confidence         *float64       `json:"confidence,omitempty"`
	AnalysisCount      int            `json:"analysis_count"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// MarshalJSON encodes the profile with snake_case keys
func (p UserProfile) MarshalJSON() ([]byte, error) {
	a := p.ProfileAnalysis
	return json.Marshal(userProfileJSON{
		UserID:             p.UserID,
		Profession:         a.Profession,
		Interests:          a.Interests,
		Expertise:          a.Expertise,
		Personality:        a.Personality,
		Goals:              a.Goals,
		Context:            a.Context,
		CommunicationStyle: a.CommunicationStyle,
		KnowledgeLevel:     a.KnowledgeLevel,
		RecentTopics:       a.RecentTopics,
		Confidence:         a.Confidence,
		AnalysisCount:      p.AnalysisCount,
		LastUpdated:        p.LastUpdated,
	})
}

// UnmarshalJSON decodes the snake_case form written by MarshalJSON
func (p *UserProfile) UnmarshalJSON(b []byte) error {
	var v userProfileJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = UserProfile{
		UserID: v.UserID,
		ProfileAnalysis: ProfileAnalysis{
			Profession:         v.Profession,
			Interests:          v.Interests,
			Expertise:          v.Expertise,
			Personality:        v.Personality,
			Goals:              v.Goals,
			Context:            v.Context,
			CommunicationStyle: v.CommunicationStyle,
			KnowledgeLevel:     v.KnowledgeLevel,
			RecentTopics:       v.RecentTopics,
			Confidence:         v.Confidence,
		},
		AnalysisCount: v.AnalysisCount,
		LastUpdated:   v.LastUpdated,
	}
	return nil
}

// HasProfession reports whether the profile knows the user's profession
func (p *UserProfile) HasProfession() bool {
	return p != nil && p.Profession != ""
}
