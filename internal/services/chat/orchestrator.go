package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/profile"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QuestionGenerator produces follow-up questions for an exchange
type QuestionGenerator interface {
	Generate(ctx context.Context, userText, assistantText string, cfg models.RelatedQuestionsConfig) []string
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Store     database.ConversationStore
	Profiles  database.ProfileStore
	Client    ai.ModelClient
	Related   QuestionGenerator
	Scheduler profile.Scheduler
	Phrases   Phrases
	Logger    *zap.Logger
}

// Orchestrator drives streamed conversation turns
type Orchestrator struct {
	store     database.ConversationStore
	profiles  database.ProfileStore
	client    ai.ModelClient
	related   QuestionGenerator
	scheduler profile.Scheduler
	identity  *IdentityMatcher
	phrases   Phrases
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewOrchestrator validates deps and builds an orchestrator
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Profiles == nil || deps.Client == nil {
		return nil, errors.New("store, profiles and client are required")
	}
	if deps.Related == nil || deps.Scheduler == nil {
		return nil, errors.New("related generator and scheduler are required")
	}
	if len(deps.Phrases.IdentityPatterns) == 0 {
		deps.Phrases = DefaultPhrases()
	}
	identity, err := NewIdentityMatcher(deps.Phrases.IdentityPatterns)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Orchestrator{
		store:     deps.Store,
		profiles:  deps.Profiles,
		client:    deps.Client,
		related:   deps.Related,
		scheduler: deps.Scheduler,
		identity:  identity,
		phrases:   deps.Phrases,
		logger:    deps.Logger,
		tracer:    otel.Tracer("assistant-chat/chat"),
	}, nil
}

// turnPlan is everything the generation steps need, shared by new turns and edits
type turnPlan struct {
	conv     *models.Conversation
	userID   uuid.UUID
	history  []*models.Message // prior turns, excluding the current user turn
	userMsg  *models.Message
	content  string
	setTitle bool
	edited   bool
}

func (o *Orchestrator) load(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := o.store.FindConversation(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// StreamTurn persists the user's message and starts generating the reply.
// Load and persistence failures are returned directly; generation failures end the stream.
func (o *Orchestrator) StreamTurn(ctx context.Context, conversationID, userID uuid.UUID, content string) (*Stream, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	conv, err := o.load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	// Persist first so the user's input survives a failed generation
	userMsg, err := o.store.CreateMessage(ctx, conv.ID, models.RoleUser, content, models.MessageExtras{})
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	return o.start(ctx, turnPlan{
		conv:     conv,
		userID:   userID,
		history:  conv.Messages,
		userMsg:  userMsg,
		content:  content,
		setTitle: conv.Title == nil && !conv.HasAssistantTurn(),
	}), nil
}

// SavePartial stores the text a caller observed before cancelling a stream.
// Empty text is ignored and returns a nil message.
func (o *Orchestrator) SavePartial(ctx context.Context, conversationID, userID uuid.UUID, content string) (*models.Message, error) {
	conv, err := o.load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	tokens := ai.EstimateTokenCount(content)
	msg, err := o.store.CreateMessage(ctx, conv.ID, models.RoleAssistant, content, models.MessageExtras{TokenCount: &tokens})
	if err != nil {
		return nil, fmt.Errorf("failed to save partial message: %w", err)
	}

	o.logger.Info("partial_message_saved",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("user_hash", ai.HashUserID(userID.String())),
		zap.Int("content_length", len(content)),
	)
	return msg, nil
}

func (o *Orchestrator) start(ctx context.Context, plan turnPlan) *Stream {
	s := &Stream{UserMessage: plan.userMsg, events: make(chan Event)}
	go func() {
		task, err := o.run(ctx, plan, s.events)
		s.err = err
		close(s.events)
		// after close so a slow scheduler never holds up the end of the stream
		if task != nil {
			o.scheduler.Schedule(ai.WithLogFields(ctx, plan.userID.String(), plan.conv.ID.String()), *task)
		}
	}()
	return s
}

// run produces the turn's events and returns the enrichment task to schedule
// once the stream is closed. The task is nil when the turn failed.
func (o *Orchestrator) run(ctx context.Context, plan turnPlan, out chan<- Event) (*profile.Task, error) {
	ctx = ai.WithLogFields(ctx, plan.userID.String(), plan.conv.ID.String())
	ctx, span := o.tracer.Start(ctx, "chat.stream_turn", trace.WithAttributes(
		attribute.String("conversation.id", plan.conv.ID.String()),
		attribute.Bool("chat.edited", plan.edited),
	))
	defer span.End()

	start := time.Now()
	fragments := 0
	emit := func(ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case out <- ev:
			if ev.Kind == EventContent {
				fragments++
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("stream_turn_failed",
			zap.String("conversation_id", plan.conv.ID.String()),
			zap.String("user_hash", ai.HashUserID(plan.userID.String())),
			zap.Int("fragments_sent", fragments),
			zap.Error(err),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
		return err
	}

	// an edit always regenerates through the model
	shortcut := !plan.edited && o.identity.Match(plan.content)
	span.SetAttributes(attribute.Bool("chat.identity_shortcut", shortcut))

	var text string
	if shortcut {
		text = RenderProfileSummary(o.loadProfile(ctx, plan.userID), o.phrases)
		for _, chunk := range chunkRunes(text, identityChunkRunes) {
			if err := emit(Event{Kind: EventContent, Content: chunk}); err != nil {
				return nil, fail(err)
			}
		}
	} else {
		var err error
		text, err = o.generate(ctx, plan, emit)
		if err != nil {
			return nil, fail(err)
		}
	}

	assistantMsg, err := o.finish(ctx, plan, text)
	if err != nil {
		return nil, fail(err)
	}

	questions := o.related.Generate(ctx, plan.content, text, plan.conv.Assistant.RelatedQuestions)
	var emitErr error
	if len(questions) > 0 {
		// Only announce questions that are durable
		if err := o.store.UpdateMessage(ctx, assistantMsg.ID, models.MessagePatch{RelatedQuestions: questions}); err != nil {
			o.logger.Warn("related_questions_save_failed",
				zap.String("message_id", assistantMsg.ID.String()),
				zap.Error(err),
			)
			questions = nil
		} else {
			emitErr = emit(Event{Kind: EventRelatedQuestions, RelatedQuestions: questions})
		}
	}

	task := &profile.Task{
		UserID:         plan.userID,
		ConversationID: plan.conv.ID,
		Turns: []ai.Turn{
			{Role: models.RoleUser, Content: plan.content},
			{Role: models.RoleAssistant, Content: text},
		},
	}

	o.logger.Info("stream_turn_completed",
		zap.String("conversation_id", plan.conv.ID.String()),
		zap.String("user_hash", ai.HashUserID(plan.userID.String())),
		zap.Bool("identity_shortcut", shortcut),
		zap.Bool("edited", plan.edited),
		zap.Int("fragments_sent", fragments),
		zap.Int("response_length", len(text)),
		zap.Int("related_questions", len(questions)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return task, emitErr
}

// generate streams the model reply, forwarding each fragment as it arrives
func (o *Orchestrator) generate(ctx context.Context, plan turnPlan, emit func(Event) error) (string, error) {
	a := plan.conv.Assistant
	systemPrompt := SystemPrompt(a.SystemPrompt, o.loadProfile(ctx, plan.userID))
	turns := BuildTurns(systemPrompt, plan.history, plan.content)

	contentCh, errCh := o.client.CompleteStream(ctx, turns, ai.GenerationParams{
		Model:       a.Model,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})

	var buf strings.Builder
	for frag := range contentCh {
		buf.WriteString(frag)
		if err := emit(Event{Kind: EventContent, Content: frag}); err != nil {
			return "", err
		}
	}

	if err := <-errCh; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ProviderError{Err: err}
	}
	return buf.String(), nil
}

// finish persists the assistant turn and updates the conversation
func (o *Orchestrator) finish(ctx context.Context, plan turnPlan, text string) (*models.Message, error) {
	tokens := ai.EstimateTokenCount(text)
	msg, err := o.store.CreateMessage(ctx, plan.conv.ID, models.RoleAssistant, text, models.MessageExtras{TokenCount: &tokens})
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	var patch models.ConversationPatch
	if plan.setTitle {
		if title := DeriveTitle(plan.content); title != "" {
			patch.Title = &title
		}
	}
	if err := o.store.UpdateConversation(ctx, plan.conv.ID, patch); err != nil {
		o.logger.Warn("conversation_update_failed",
			zap.String("conversation_id", plan.conv.ID.String()),
			zap.Error(err),
		)
	}

	return msg, nil
}

// loadProfile returns the user's profile or nil. Lookup errors are logged, not returned.
func (o *Orchestrator) loadProfile(ctx context.Context, userID uuid.UUID) *models.UserProfile {
	p, err := o.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			o.logger.Warn("profile_load_failed",
				zap.String("user_hash", ai.HashUserID(userID.String())),
				zap.Error(err),
			)
		}
		return nil
	}
	return p
}
