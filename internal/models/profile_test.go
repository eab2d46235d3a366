package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUserProfile_JSONKeysAreSnakeCase(t *testing.T) {
	t.Parallel()

	conf := 0.8
	p := UserProfile{
		UserID:        uuid.New(),
		AnalysisCount: 3,
		LastUpdated:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	p.Profession = "nurse"
	p.CommunicationStyle = "concise"
	p.KnowledgeLevel = KnowledgeExpert
	p.RecentTopics = []string{"triage"}
	p.Confidence = &conf

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, want := range []string{"user_id", "profession", "communication_style", "knowledge_level", "recent_topics", "confidence", "analysis_count", "last_updated"} {
		if _, ok := keys[want]; !ok {
			t.Errorf("missing key %q in %s", want, b)
		}
	}
	for _, camel := range []string{"analysisCount", "lastUpdated", "communicationStyle", "knowledgeLevel", "recentTopics"} {
		if _, ok := keys[camel]; ok {
			t.Errorf("unexpected camelCase key %q in %s", camel, b)
		}
	}

	var back UserProfile
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.UserID != p.UserID || back.AnalysisCount != 3 || back.KnowledgeLevel != KnowledgeExpert || !back.LastUpdated.Equal(p.LastUpdated) {
		t.Errorf("decoded profile %+v does not match %+v", back, p)
	}
}

func TestProfileAnalysis_KeepsModelKeys(t *testing.T) {
	t.Parallel()

	var a ProfileAnalysis
	if err := json.Unmarshal([]byte(`{"communicationStyle":"casual","knowledgeLevel":"beginner","recentTopics":["go"]}`), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if a.CommunicationStyle != "casual" || a.KnowledgeLevel != KnowledgeBeginner || len(a.RecentTopics) != 1 {
		t.Errorf("unexpected analysis %+v", a)
	}
}
