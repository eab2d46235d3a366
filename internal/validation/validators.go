package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("related_mode", validateRelatedMode); err != nil {
		panic(fmt.Sprintf("failed to register related_mode validator: %v", err))
	}
	if err := Validate.RegisterValidation("role", validateRole); err != nil {
		panic(fmt.Sprintf("failed to register role validator: %v", err))
	}
}

func validateRelatedMode(fl validator.FieldLevel) bool {
	return ValidateRelatedMode(fl.Field().String()) == nil
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

// ValidateRelatedMode validates a related-questions mode string
func ValidateRelatedMode(value string) error {
	switch models.RelatedQuestionsMode(value) {
	case models.RelatedQuestionsLLM, models.RelatedQuestionsTemplate, models.RelatedQuestionsDisabled:
		return nil
	default:
		return fmt.Errorf("invalid related questions mode: %s (must be 'llm', 'template', or 'disabled')", value)
	}
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Describe turns validator errors into a short client-facing message
func Describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
