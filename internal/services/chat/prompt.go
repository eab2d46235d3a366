package chat

import (
	"strings"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
)

// SystemPrompt appends a profile context block to base when the profile knows the user's profession
func SystemPrompt(base string, profile *models.UserProfile) string {
	if !profile.HasProfession() {
		return base
	}

	var b strings.Builder
	b.WriteString("Known information about the user:\n")
	writeField(&b, "Profession", profile.Profession)
	writeList(&b, "Expertise", profile.Expertise)
	writeList(&b, "Interests", profile.Interests)
	writeField(&b, "Knowledge level", string(profile.KnowledgeLevel))
	writeField(&b, "Communication style", profile.CommunicationStyle)
	writeList(&b, "Goals", profile.Goals)
	b.WriteString("Use this to tailor your answers.")

	if strings.TrimSpace(base) == "" {
		return b.String()
	}
	return base + "\n\n" + b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString("- ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeList(b *strings.Builder, label string, values []string) {
	writeField(b, label, strings.Join(values, ", "))
}

// BuildTurns assembles the model prompt: optional system turn, history in order, then the new user turn
func BuildTurns(systemPrompt string, history []*models.Message, content string) []ai.Turn {
	turns := make([]ai.Turn, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		turns = append(turns, ai.Turn{Role: models.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		turns = append(turns, ai.Turn{Role: m.Role, Content: m.Content})
	}
	return append(turns, ai.Turn{Role: models.RoleUser, Content: content})
}
