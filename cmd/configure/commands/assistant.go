package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/validation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewAssistantCmd creates the assistant command with list, create and set-related subcommands
func NewAssistantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Manage assistant configurations",
	}
	cmd.AddCommand(newAssistantListCmd())
	cmd.AddCommand(newAssistantCreateCmd())
	cmd.AddCommand(newAssistantSetRelatedCmd())
	return cmd
}

func newAssistantListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assistants visible to a user",
		Long:  "List public assistants, plus the assistants owned by --user when given",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := uuid.Nil
			if owner != "" {
				id, err := uuid.Parse(owner)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = id
			}

			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			assistants, err := database.NewAssistantRepository(db).ListAssistants(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to list assistants: %w", err)
			}
			printAssistants(cmd.OutOrStdout(), assistants)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "user", "", "Owner user ID")
	return cmd
}

func printAssistants(w io.Writer, assistants []*models.AssistantConfig) {
	if len(assistants) == 0 {
		_, _ = fmt.Fprintln(w, "No assistants configured")
		return
	}

	_, _ = fmt.Fprintln(w, heading("Assistants:"))
	for _, a := range assistants {
		visibility := "private"
		if a.IsPublic {
			visibility = "public"
		}
		_, _ = fmt.Fprintf(w, "  - %s (%s, %s)\n", a.Name, a.ID, visibility)
		_, _ = fmt.Fprintf(w, "    Model: %s  Temperature: %.2f  Max tokens: %d\n", a.Model, a.Temperature, a.MaxTokens)
		_, _ = fmt.Fprintf(w, "    Related questions: %s\n", describeRelated(a.RelatedQuestions))
	}
}

func describeRelated(c models.RelatedQuestionsConfig) string {
	if !c.Active() {
		return "disabled"
	}
	return fmt.Sprintf("%s x%d", c.Mode, c.EffectiveCount())
}

// relatedFlags holds the shared --related-mode/--related-count values
type relatedFlags struct {
	mode  string
	count int
}

func (f relatedFlags) config() (models.RelatedQuestionsConfig, error) {
	mode := strings.ToLower(strings.TrimSpace(f.mode))
	if err := validation.ValidateRelatedMode(mode); err != nil {
		return models.RelatedQuestionsConfig{}, err
	}
	cfg := models.RelatedQuestionsConfig{
		Enabled: models.RelatedQuestionsMode(mode) != models.RelatedQuestionsDisabled,
		Mode:    models.RelatedQuestionsMode(mode),
		Count:   f.count,
	}
	if err := validation.Validate.Struct(cfg); err != nil {
		return models.RelatedQuestionsConfig{}, fmt.Errorf("invalid related questions config: %s", validation.Describe(err))
	}
	return cfg, nil
}

func newAssistantCreateCmd() *cobra.Command {
	var (
		name, prompt, model, owner string
		temperature                float64
		maxTokens                  int
		public                     bool
		related                    relatedFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			rq, err := related.config()
			if err != nil {
				return err
			}

			a := &models.AssistantConfig{
				Name:             name,
				SystemPrompt:     validation.SanitizeText(prompt),
				Model:            model,
				Temperature:      temperature,
				MaxTokens:        maxTokens,
				IsPublic:         public,
				RelatedQuestions: rq,
			}
			if owner != "" {
				if a.UserID, err = uuid.Parse(owner); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}
			if err := validation.Validate.Struct(a); err != nil {
				return fmt.Errorf("invalid assistant: %s", validation.Describe(err))
			}

			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewAssistantRepository(db).UpsertAssistant(cmd.Context(), a); err != nil {
				return fmt.Errorf("failed to create assistant: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Created assistant %s (%s)\n", okMark("✓"), a.Name, a.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Assistant name (required)")
	cmd.Flags().StringVar(&prompt, "system-prompt", "", "System prompt")
	cmd.Flags().StringVar(&model, "model", "", "Model override (empty uses AI_MODEL)")
	cmd.Flags().StringVar(&owner, "user", "", "Owner user ID")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature (0-2)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Max completion tokens (0 for provider default)")
	cmd.Flags().BoolVar(&public, "public", false, "Visible to every user")
	cmd.Flags().StringVar(&related.mode, "related-mode", string(models.RelatedQuestionsTemplate), "Related questions mode: llm, template or disabled")
	cmd.Flags().IntVar(&related.count, "related-count", models.DefaultRelatedQuestions, "Related questions per reply (1-5)")
	return cmd
}

func newAssistantSetRelatedCmd() *cobra.Command {
	var related relatedFlags

	cmd := &cobra.Command{
		Use:   "set-related <assistant-id>",
		Short: "Configure related question generation for an assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid assistant ID: %w", err)
			}
			rq, err := related.config()
			if err != nil {
				return err
			}

			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			return setRelated(cmd.Context(), database.NewAssistantRepository(db), id, rq, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&related.mode, "mode", "", "llm, template or disabled (required)")
	cmd.Flags().IntVar(&related.count, "count", models.DefaultRelatedQuestions, "Questions per reply (1-5)")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func setRelated(ctx context.Context, store database.AssistantStore, id uuid.UUID, rq models.RelatedQuestionsConfig, w io.Writer) error {
	a, err := store.GetAssistant(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get assistant: %w", err)
	}
	a.RelatedQuestions = rq
	if err := store.UpsertAssistant(ctx, a); err != nil {
		return fmt.Errorf("failed to update assistant: %w", err)
	}
	_, _ = fmt.Fprintf(w, "%s %s related questions: %s\n", okMark("✓"), a.Name, describeRelated(rq))
	return nil
}
