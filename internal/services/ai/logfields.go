package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	logpkg "github.com/benvon/assistant-chat/internal/logger"
)

const (
	turnPreviewLength   = 200
	replyPreviewLength  = 10000
	userHashPrefixChars = 16
)

type logFieldsKey struct{}

// logFields are the identifiers attached to model calls so a debug log line
// can be tied back to a request and a conversation
type logFields struct {
	requestID      string
	userID         string
	conversationID string
}

func fieldsFrom(ctx context.Context) logFields {
	f, _ := ctx.Value(logFieldsKey{}).(logFields)
	return f
}

// WithLogFields returns a context carrying the user and conversation IDs.
// Empty values leave any existing field untouched.
func WithLogFields(ctx context.Context, userID, conversationID string) context.Context {
	f := fieldsFrom(ctx)
	if userID != "" {
		f.userID = userID
	}
	if conversationID != "" {
		f.conversationID = conversationID
	}
	return context.WithValue(ctx, logFieldsKey{}, f)
}

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	f := fieldsFrom(ctx)
	f.requestID = requestID
	return context.WithValue(ctx, logFieldsKey{}, f)
}

func ExtractRequestID(ctx context.Context) string      { return fieldsFrom(ctx).requestID }
func ExtractUserID(ctx context.Context) string         { return fieldsFrom(ctx).userID }
func ExtractConversationID(ctx context.Context) string { return fieldsFrom(ctx).conversationID }

// HashUserID shortens a user ID to a stable pseudonym for info-level logs
func HashUserID(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:userHashPrefixChars]
}

// turnPreviews returns one short, log-safe preview per turn
func turnPreviews(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, string(t.Role)+": "+logpkg.SanitizeString(t.Content, turnPreviewLength))
	}
	return out
}

// replyPreview bounds a model reply for debug logs
func replyPreview(content string) string {
	return logpkg.SanitizeString(content, replyPreviewLength)
}
