package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewProfileCmd creates the profile command with show and clear subcommands
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or clear inferred user profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a user's profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(cmd, args[0], showProfile)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <user-id>",
		Short: "Delete a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(cmd, args[0], clearProfile)
		},
	})
	return cmd
}

type profileAction func(ctx context.Context, store database.ProfileStore, userID uuid.UUID, w io.Writer) error

func withProfiles(cmd *cobra.Command, rawID string, action profileAction) error {
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	cfg, db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	var store database.ProfileStore = database.NewProfileRepository(db)
	if cfg.RedisURL != "" {
		// Go through the cache so a cleared profile is not served stale
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		store = database.NewCachedProfileStore(store, client, 0, nil)
	}

	return action(cmd.Context(), store, userID, cmd.OutOrStdout())
}

func showProfile(ctx context.Context, store database.ProfileStore, userID uuid.UUID, w io.Writer) error {
	p, err := store.GetProfile(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		_, _ = fmt.Fprintln(w, "No profile recorded for this user")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, _ = fmt.Fprintln(w, string(out))
	return nil
}

func clearProfile(ctx context.Context, store database.ProfileStore, userID uuid.UUID, w io.Writer) error {
	if err := store.DeleteProfile(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	_, _ = fmt.Fprintf(w, "%s Cleared profile for %s\n", okMark("✓"), userID)
	return nil
}
