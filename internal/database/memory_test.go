package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

func seedConversation(t *testing.T, s *MemoryStore) (*models.Conversation, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	owner := uuid.New()
	a := &models.AssistantConfig{UserID: owner, Name: "helper", SystemPrompt: "be nice"}
	if err := s.UpsertAssistant(ctx, a); err != nil {
		t.Fatalf("UpsertAssistant() error = %v", err)
	}
	conv := &models.Conversation{UserID: owner, AssistantID: a.ID}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	return conv, owner
}

func TestMemoryStore_AppendKeepsOrderAndAdvancesUpdatedAt(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	conv, owner := seedConversation(t, s)
	ctx := context.Background()

	prev := conv.UpdatedAt
	contents := []string{"one", "two", "three"}
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if _, err := s.CreateMessage(ctx, conv.ID, role, c, models.MessageExtras{}); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}

		got, err := s.FindConversation(ctx, conv.ID, owner)
		if err != nil {
			t.Fatalf("FindConversation() error = %v", err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Errorf("append %d: updatedAt did not advance (%v -> %v)", i, prev, got.UpdatedAt)
		}
		prev = got.UpdatedAt

		if len(got.Messages) != i+1 {
			t.Fatalf("expected %d messages, got %d", i+1, len(got.Messages))
		}
		for j := 0; j <= i; j++ {
			if got.Messages[j].Content != contents[j] {
				t.Errorf("message %d: expected %q, got %q", j, contents[j], got.Messages[j].Content)
			}
		}
	}
}

func TestMemoryStore_FindConversationChecksOwner(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _ := seedConversation(t, s)

	_, err := s.FindConversation(context.Background(), conv.ID, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	_, err = s.FindConversation(context.Background(), uuid.New(), conv.UserID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, owner := seedConversation(t, s)
	ctx := context.Background()

	if _, err := s.CreateMessage(ctx, conv.ID, models.RoleAssistant, "answer", models.MessageExtras{RelatedQuestions: []string{"q1"}}); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	got, _ := s.FindConversation(ctx, conv.ID, owner)
	got.Messages[0].Content = "mutated"
	got.Messages[0].RelatedQuestions[0] = "mutated"

	again, _ := s.FindConversation(ctx, conv.ID, owner)
	if again.Messages[0].Content != "answer" || again.Messages[0].RelatedQuestions[0] != "q1" {
		t.Errorf("store state leaked through returned conversation: %+v", again.Messages[0])
	}
}

func TestMemoryStore_UpdateAndDeleteMessages(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, owner := seedConversation(t, s)
	ctx := context.Background()

	m1, _ := s.CreateMessage(ctx, conv.ID, models.RoleUser, "u1", models.MessageExtras{})
	m2, _ := s.CreateMessage(ctx, conv.ID, models.RoleAssistant, "a1", models.MessageExtras{})
	m3, _ := s.CreateMessage(ctx, conv.ID, models.RoleUser, "u2", models.MessageExtras{})

	content := "u1 edited"
	tokens := 7
	if err := s.UpdateMessage(ctx, m1.ID, models.MessagePatch{Content: &content, TokenCount: &tokens}); err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	if err := s.DeleteMessages(ctx, []uuid.UUID{m2.ID, m3.ID}); err != nil {
		t.Fatalf("DeleteMessages() error = %v", err)
	}

	got, _ := s.FindConversation(ctx, conv.ID, owner)
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != content || *got.Messages[0].TokenCount != tokens {
		t.Errorf("patch not applied: %+v", got.Messages[0])
	}

	err := s.UpdateMessage(ctx, uuid.New(), models.MessagePatch{Content: &content})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown message, got %v", err)
	}
}

func TestMemoryStore_UpdateConversationTitle(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, owner := seedConversation(t, s)
	ctx := context.Background()

	title := "hello"
	if err := s.UpdateConversation(ctx, conv.ID, models.ConversationPatch{Title: &title}); err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}
	if err := s.UpdateConversation(ctx, conv.ID, models.ConversationPatch{}); err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}

	got, _ := s.FindConversation(ctx, conv.ID, owner)
	if got.Title == nil || *got.Title != title {
		t.Errorf("expected title %q to survive an empty patch, got %v", title, got.Title)
	}
	if !got.UpdatedAt.After(conv.UpdatedAt) {
		t.Error("expected updatedAt to advance")
	}
}

func TestMemoryStore_Profiles(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := s.GetProfile(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := &models.UserProfile{UserID: userID, AnalysisCount: 1}
	p.Profession = "engineer"
	p.Interests = []string{"go"}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	p.Interests[0] = "mutated"

	got, err := s.GetProfile(ctx, userID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Profession != "engineer" || got.Interests[0] != "go" {
		t.Errorf("unexpected profile %+v", got)
	}

	if err := s.DeleteProfile(ctx, userID); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if _, err := s.GetProfile(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_EnsureUser(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	a, err := s.EnsureUser(ctx, models.Identity{Subject: "sub-1", Email: "a@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	b, _ := s.EnsureUser(ctx, models.Identity{Subject: "sub-1", Email: "new@example.com"})
	c, _ := s.EnsureUser(ctx, models.Identity{Subject: "sub-2", Email: "b@example.com"})

	if a.ID != b.ID {
		t.Error("expected same user for same subject")
	}
	if a.ID == c.ID {
		t.Error("expected different users for different subjects")
	}
	if b.Email != "new@example.com" || b.DisplayName != "Ada" {
		t.Errorf("refresh should update email and keep name: %+v", b)
	}
	if !b.LastSeenAt.After(a.LastSeenAt) {
		t.Error("LastSeenAt should advance on each sighting")
	}

	got, err := s.GetUser(ctx, a.ID)
	if err != nil || got.Subject != "sub-1" {
		t.Errorf("GetUser() = %+v, %v", got, err)
	}
	if _, err := s.GetUser(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListAssistantsOwnFirst(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	me, other := uuid.New(), uuid.New()

	_ = s.UpsertAssistant(ctx, &models.AssistantConfig{UserID: other, Name: "a-public", IsPublic: true})
	_ = s.UpsertAssistant(ctx, &models.AssistantConfig{UserID: other, Name: "b-private"})
	_ = s.UpsertAssistant(ctx, &models.AssistantConfig{UserID: me, Name: "z-mine"})

	got, err := s.ListAssistants(ctx, me)
	if err != nil {
		t.Fatalf("ListAssistants() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 assistants, got %d", len(got))
	}
	if got[0].Name != "z-mine" || got[1].Name != "a-public" {
		t.Errorf("unexpected order: %s, %s", got[0].Name, got[1].Name)
	}
}
