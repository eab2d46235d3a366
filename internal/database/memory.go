package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of every store interface.
// It backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu            sync.RWMutex
	now           func() time.Time
	lastTick      time.Time
	users         map[string]*models.User
	assistants    map[uuid.UUID]*models.AssistantConfig
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message
	profiles      map[uuid.UUID]*models.UserProfile
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:           time.Now,
		users:         make(map[string]*models.User),
		assistants:    make(map[uuid.UUID]*models.AssistantConfig),
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
		profiles:      make(map[uuid.UUID]*models.UserProfile),
	}
}

// tick returns a timestamp strictly after every previous one. Caller holds mu.
func (s *MemoryStore) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Microsecond)
	}
	s.lastTick = t
	return t
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	if m.TokenCount != nil {
		n := *m.TokenCount
		c.TokenCount = &n
	}
	c.RelatedQuestions = slices.Clone(m.RelatedQuestions)
	return &c
}

func copyProfile(p *models.UserProfile) *models.UserProfile {
	c := *p
	c.Interests = slices.Clone(p.Interests)
	c.Expertise = slices.Clone(p.Expertise)
	c.Personality = slices.Clone(p.Personality)
	c.Goals = slices.Clone(p.Goals)
	c.RecentTopics = slices.Clone(p.RecentTopics)
	if p.Confidence != nil {
		v := *p.Confidence
		c.Confidence = &v
	}
	return &c
}

// EnsureUser returns the user for id.Subject, creating it on first sight
func (s *MemoryStore) EnsureUser(_ context.Context, id models.Identity) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	u, ok := s.users[id.Subject]
	if !ok {
		u = &models.User{ID: uuid.New(), Subject: id.Subject, CreatedAt: now}
		s.users[id.Subject] = u
	}
	if id.Email != "" {
		u.Email = id.Email
	}
	if id.Name != "" {
		u.DisplayName = id.Name
	}
	u.LastSeenAt = now
	c := *u
	return &c, nil
}

// GetUser retrieves a user by local ID
func (s *MemoryStore) GetUser(_ context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == userID {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// GetAssistant retrieves an assistant by ID
func (s *MemoryStore) GetAssistant(_ context.Context, id uuid.UUID) (*models.AssistantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assistants[id]
	if !ok {
		return nil, fmt.Errorf("assistant %s: %w", id, ErrNotFound)
	}
	c := *a
	return &c, nil
}

// ListAssistants returns the user's own assistants followed by public ones
func (s *MemoryStore) ListAssistants(_ context.Context, userID uuid.UUID) ([]*models.AssistantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AssistantConfig
	for _, a := range s.assistants {
		if a.UserID == userID || a.IsPublic {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := out[i].UserID == userID, out[j].UserID == userID
		if oi != oj {
			return oi
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpsertAssistant creates the assistant or replaces its configuration
func (s *MemoryStore) UpsertAssistant(_ context.Context, a *models.AssistantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := s.tick()
	if existing, ok := s.assistants[a.ID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	c := *a
	s.assistants[a.ID] = &c
	return nil
}

// FindConversation loads a conversation with its assistant snapshot and ordered messages
func (s *MemoryStore) FindConversation(_ context.Context, id, ownerID uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != ownerID {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	c := *conv
	if a, ok := s.assistants[conv.AssistantID]; ok {
		c.Assistant = *a
	}
	if conv.Title != nil {
		title := *conv.Title
		c.Title = &title
	}
	msgs := s.messages[id]
	c.Messages = make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		c.Messages = append(c.Messages, copyMessage(m))
	}
	return &c, nil
}

// CreateConversation inserts a new conversation
func (s *MemoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if _, ok := s.assistants[conv.AssistantID]; !ok {
		return fmt.Errorf("assistant %s: %w", conv.AssistantID, ErrNotFound)
	}

	now := s.tick()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	c := *conv
	c.Messages = nil
	s.conversations[conv.ID] = &c
	return nil
}

// DeleteConversation removes a conversation and its messages
func (s *MemoryStore) DeleteConversation(_ context.Context, id, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != ownerID {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// CreateMessage appends a message and advances the conversation's updatedAt
func (s *MemoryStore) CreateMessage(_ context.Context, conversationID uuid.UUID, role models.Role, content string, extras models.MessageExtras) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	now := s.tick()
	m := &models.Message{
		ID:               uuid.New(),
		ConversationID:   conversationID,
		Role:             role,
		Content:          content,
		TokenCount:       extras.TokenCount,
		RelatedQuestions: slices.Clone(extras.RelatedQuestions),
		CreatedAt:        now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)
	conv.UpdatedAt = now

	return copyMessage(m), nil
}

// UpdateMessage applies a partial update to a message
func (s *MemoryStore) UpdateMessage(_ context.Context, id uuid.UUID, patch models.MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findMessageLocked(id)
	if m == nil {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.TokenCount != nil {
		n := *patch.TokenCount
		m.TokenCount = &n
	}
	if patch.RelatedQuestions != nil {
		m.RelatedQuestions = slices.Clone(patch.RelatedQuestions)
	}
	return nil
}

func (s *MemoryStore) findMessageLocked(id uuid.UUID) *models.Message {
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// DeleteMessages removes the given messages. Unknown IDs are ignored.
func (s *MemoryStore) DeleteMessages(_ context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	for convID, msgs := range s.messages {
		s.messages[convID] = slices.DeleteFunc(msgs, func(m *models.Message) bool {
			_, ok := drop[m.ID]
			return ok
		})
	}
	return nil
}

// UpdateConversation applies a partial update and always advances updatedAt
func (s *MemoryStore) UpdateConversation(_ context.Context, id uuid.UUID, patch models.ConversationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if patch.Title != nil {
		title := *patch.Title
		conv.Title = &title
	}
	conv.UpdatedAt = s.tick()
	return nil
}

// GetProfile retrieves a user's profile
func (s *MemoryStore) GetProfile(_ context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return copyProfile(p), nil
}

// SaveProfile creates or replaces a user's profile
func (s *MemoryStore) SaveProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

// DeleteProfile removes a user's profile
func (s *MemoryStore) DeleteProfile(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.profiles, userID)
	return nil
}
