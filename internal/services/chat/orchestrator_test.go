package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/profile"
	"github.com/benvon/assistant-chat/internal/services/related"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type mockModelClient struct {
	fragments   []string
	streamErr   error
	completeErr error
	streamCalls atomic.Int32
	allCalls    atomic.Int32

	mu        sync.Mutex
	lastTurns []ai.Turn
	lastParam ai.GenerationParams
}

func (m *mockModelClient) Complete(ctx context.Context, turns []ai.Turn, params ai.GenerationParams) (*ai.Completion, error) {
	m.allCalls.Add(1)
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return &ai.Completion{Text: "Q1?\nQ2?"}, nil
}

func (m *mockModelClient) CompleteStream(ctx context.Context, turns []ai.Turn, params ai.GenerationParams) (<-chan string, <-chan error) {
	m.allCalls.Add(1)
	m.streamCalls.Add(1)
	m.mu.Lock()
	m.lastTurns = turns
	m.lastParam = params
	m.mu.Unlock()

	contentCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(contentCh)
		defer close(errCh)
		for _, f := range m.fragments {
			select {
			case contentCh <- f:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if m.streamErr != nil {
			errCh <- m.streamErr
		}
	}()
	return contentCh, errCh
}

func (m *mockModelClient) turns() []ai.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTurns
}

type mockScheduler struct {
	mu    sync.Mutex
	tasks []profile.Task
	// block, when set, stalls Schedule until it is closed
	block chan struct{}
}

func (m *mockScheduler) Schedule(ctx context.Context, task profile.Task) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *mockScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

var (
	_ ai.ModelClient    = (*mockModelClient)(nil)
	_ profile.Scheduler = (*mockScheduler)(nil)
)

type fixture struct {
	store     *database.MemoryStore
	client    *mockModelClient
	scheduler *mockScheduler
	orch      *Orchestrator
	userID    uuid.UUID
	conv      *models.Conversation
}

func newFixture(t *testing.T, cfg models.RelatedQuestionsConfig, fragments ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	store := database.NewMemoryStore()
	userID := uuid.New()
	assistant := &models.AssistantConfig{
		UserID:           userID,
		Name:             "helper",
		SystemPrompt:     "You are helpful.",
		Model:            "test-model",
		Temperature:      0.5,
		MaxTokens:        256,
		RelatedQuestions: cfg,
	}
	require.NoError(t, store.UpsertAssistant(ctx, assistant))
	conv := &models.Conversation{UserID: userID, AssistantID: assistant.ID}
	require.NoError(t, store.CreateConversation(ctx, conv))

	client := &mockModelClient{fragments: fragments}
	scheduler := &mockScheduler{}
	orch, err := NewOrchestrator(Deps{
		Store:     store,
		Profiles:  store,
		Client:    client,
		Related:   related.NewGenerator(client),
		Scheduler: scheduler,
	})
	require.NoError(t, err)

	return &fixture{store: store, client: client, scheduler: scheduler, orch: orch, userID: userID, conv: conv}
}

func (f *fixture) reload(t *testing.T) *models.Conversation {
	t.Helper()
	conv, err := f.store.FindConversation(context.Background(), f.conv.ID, f.userID)
	require.NoError(t, err)
	return conv
}

func contents(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == EventContent {
			out = append(out, ev.Content)
		}
	}
	return out
}

var disabled = models.RelatedQuestionsConfig{Enabled: false}

func TestStreamTurn_ShortFirstMessageBecomesTitle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "你好！", "有什么可以帮你？")
	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "你好")
	require.NoError(t, err)

	events, err := s.Collect()
	require.NoError(t, err)
	require.Equal(t, []string{"你好！", "有什么可以帮你？"}, contents(events))

	conv := f.reload(t)
	require.NotNil(t, conv.Title)
	require.Equal(t, "你好", *conv.Title)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, models.RoleUser, conv.Messages[0].Role)
	require.Equal(t, "你好！有什么可以帮你？", conv.Messages[1].Content)
	require.NotNil(t, conv.Messages[1].TokenCount)
}

func TestStreamTurn_TitleOnlyOnFirstExchange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "ok")
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		s, err := f.orch.StreamTurn(ctx, f.conv.ID, f.userID, msg)
		require.NoError(t, err)
		_, err = s.Collect()
		require.NoError(t, err)
	}

	conv := f.reload(t)
	require.Equal(t, "first", *conv.Title)
	require.Len(t, conv.Messages, 4)
}

func TestStreamTurn_IdentityQuestionWithoutProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "should not be used")
	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "我是谁")
	require.NoError(t, err)

	events, err := s.Collect()
	require.NoError(t, err)
	require.Equal(t, DefaultPhrases().NotEnoughData, strings.Join(contents(events), ""))
	require.Equal(t, int32(0), f.client.allCalls.Load())

	conv := f.reload(t)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, DefaultPhrases().NotEnoughData, conv.Messages[1].Content)
}

func TestStreamTurn_IdentityQuestionRendersProfileInChunks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled)
	p := &models.UserProfile{UserID: f.userID, AnalysisCount: 2}
	p.Profession = "软件工程师"
	p.Interests = []string{"登山", "摄影"}
	require.NoError(t, f.store.SaveProfile(context.Background(), p))

	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "你了解我吗？")
	require.NoError(t, err)
	events, err := s.Collect()
	require.NoError(t, err)

	chunks := contents(events)
	require.Greater(t, len(chunks), 1)
	full := strings.Join(chunks, "")
	require.Equal(t, RenderProfileSummary(p, DefaultPhrases()), full)
	require.Contains(t, full, "软件工程师")
	require.Contains(t, full, "登山、摄影")
	require.Equal(t, int32(0), f.client.allCalls.Load())
}

func TestStreamTurn_TemplateQuestionsFromKeyword(t *testing.T) {
	t.Parallel()

	cfg := models.RelatedQuestionsConfig{Enabled: true, Mode: models.RelatedQuestionsTemplate, Count: 3}
	f := newFixture(t, cfg, "看起来", "没问题")

	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "帮我看看这段代码有没有问题")
	require.NoError(t, err)

	var questions []string
	for ev := range s.Events() {
		if ev.Kind == EventRelatedQuestions {
			questions = ev.RelatedQuestions
			// persisted before it is announced
			conv := f.reload(t)
			require.Equal(t, questions, conv.Messages[len(conv.Messages)-1].RelatedQuestions)
		}
	}
	require.NoError(t, s.Err())

	require.NotEmpty(t, questions)
	require.LessOrEqual(t, len(questions), 3)
	codeList := relatedKeywords(t, "代码")
	for _, q := range questions {
		require.True(t, slices.Contains(codeList, q), "%q not in 代码 list", q)
	}
	require.Equal(t, int32(1), f.client.allCalls.Load(), "template mode must not call the model")
}

func relatedKeywords(t *testing.T, key string) []string {
	t.Helper()
	list, ok := related.DefaultTemplates().Keywords[key]
	require.True(t, ok)
	return list
}

func TestStreamTurn_RelatedQuestionsIsLastEvent(t *testing.T) {
	t.Parallel()

	cfg := models.RelatedQuestionsConfig{Enabled: true, Mode: models.RelatedQuestionsLLM, Count: 2}
	f := newFixture(t, cfg, "a", "b", "c")

	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "tell me")
	require.NoError(t, err)
	events, err := s.Collect()
	require.NoError(t, err)

	require.Len(t, events, 4)
	last := events[len(events)-1]
	require.Equal(t, EventRelatedQuestions, last.Kind)
	require.Equal(t, []string{"Q1?", "Q2?"}, last.RelatedQuestions)
}

func TestStreamTurn_ProviderErrorAfterTwoFragments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "one", "two")
	f.client.streamErr = errors.New("upstream reset")

	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "hello")
	require.NoError(t, err)

	events, err := s.Collect()
	require.Equal(t, []string{"one", "two"}, contents(events))
	require.Len(t, events, 2)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.ErrorContains(t, err, "upstream reset")

	conv := f.reload(t)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, models.RoleUser, conv.Messages[0].Role)
	require.Equal(t, "hello", conv.Messages[0].Content)
	require.Nil(t, conv.Title)
	require.Equal(t, 0, f.scheduler.count())
}

func TestStreamTurn_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "x")
	ctx := context.Background()

	_, err := f.orch.StreamTurn(ctx, f.conv.ID, uuid.New(), "hi")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orch.StreamTurn(ctx, uuid.New(), f.userID, "hi")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orch.StreamTurn(ctx, f.conv.ID, f.userID, "   ")
	require.ErrorIs(t, err, ErrEmptyContent)

	require.Empty(t, f.reload(t).Messages)
}

func TestStreamTurn_PromptIncludesHistoryAndProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "reply")
	ctx := context.Background()

	s, err := f.orch.StreamTurn(ctx, f.conv.ID, f.userID, "first question")
	require.NoError(t, err)
	_, err = s.Collect()
	require.NoError(t, err)

	p := &models.UserProfile{UserID: f.userID}
	p.Profession = "chemist"
	p.Goals = []string{"publish"}
	require.NoError(t, f.store.SaveProfile(ctx, p))

	s, err = f.orch.StreamTurn(ctx, f.conv.ID, f.userID, "second question")
	require.NoError(t, err)
	_, err = s.Collect()
	require.NoError(t, err)

	turns := f.client.turns()
	require.Len(t, turns, 4)
	require.Equal(t, models.RoleSystem, turns[0].Role)
	require.True(t, strings.HasPrefix(turns[0].Content, "You are helpful."))
	require.Contains(t, turns[0].Content, "- Profession: chemist")
	require.Contains(t, turns[0].Content, "- Goals: publish")
	require.NotContains(t, turns[0].Content, "Interests")
	require.Equal(t, []ai.Turn{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "second question"},
	}, turns[1:])

	f.client.mu.Lock()
	params := f.client.lastParam
	f.client.mu.Unlock()
	require.Equal(t, ai.GenerationParams{Model: "test-model", Temperature: 0.5, MaxTokens: 256}, params)
}

func TestStreamTurn_SchedulesEnrichmentWithExchange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "hi ", "there")
	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "I am a baker")
	require.NoError(t, err)
	_, err = s.Collect()
	require.NoError(t, err)

	// scheduling happens after the stream closes
	require.Eventually(t, func() bool { return f.scheduler.count() == 1 }, time.Second, 5*time.Millisecond)
	f.scheduler.mu.Lock()
	defer f.scheduler.mu.Unlock()
	require.Len(t, f.scheduler.tasks, 1)
	task := f.scheduler.tasks[0]
	require.Equal(t, f.userID, task.UserID)
	require.Equal(t, f.conv.ID, task.ConversationID)
	require.Equal(t, []ai.Turn{
		{Role: models.RoleUser, Content: "I am a baker"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}, task.Turns)
}

func TestStreamTurn_StalledSchedulerDoesNotDelayStreamEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "done")
	f.scheduler.block = make(chan struct{})
	defer close(f.scheduler.block)

	s, err := f.orch.StreamTurn(context.Background(), f.conv.ID, f.userID, "hello")
	require.NoError(t, err)

	collected := make(chan error, 1)
	go func() {
		_, err := s.Collect()
		collected <- err
	}()

	select {
	case err := <-collected:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not end while enrichment scheduling was stalled")
	}
	require.Equal(t, 0, f.scheduler.count())
}

func TestStreamTurn_CancelledConsumerStopsProducer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled, "a", "b", "c", "d")
	ctx, cancel := context.WithCancel(context.Background())

	s, err := f.orch.StreamTurn(ctx, f.conv.ID, f.userID, "hi")
	require.NoError(t, err)

	first := <-s.Events()
	require.Equal(t, "a", first.Content)
	cancel()

	for range s.Events() {
	}
	require.ErrorIs(t, s.Err(), context.Canceled)

	conv := f.reload(t)
	require.Len(t, conv.Messages, 1, "no assistant turn is persisted on cancellation")
}

func TestSavePartial(t *testing.T) {
	t.Parallel()

	f := newFixture(t, disabled)
	ctx := context.Background()

	msg, err := f.orch.SavePartial(ctx, f.conv.ID, f.userID, "half an ans")
	require.NoError(t, err)
	require.Equal(t, models.RoleAssistant, msg.Role)

	msg, err = f.orch.SavePartial(ctx, f.conv.ID, f.userID, "  ")
	require.NoError(t, err)
	require.Nil(t, msg)

	_, err = f.orch.SavePartial(ctx, f.conv.ID, uuid.New(), "x")
	require.ErrorIs(t, err, ErrNotFound)

	conv := f.reload(t)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "half an ans", conv.Messages[0].Content)
	require.Equal(t, 0, f.scheduler.count())
}
