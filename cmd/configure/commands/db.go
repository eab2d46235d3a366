package commands

import (
	"fmt"
	"os"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/database"
	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
	heading  = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// openDB connects to the configured Postgres database. The returned func closes it.
func openDB() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, nil, nil, fmt.Errorf("store driver %q keeps no persistent data to configure", cfg.StoreDriver)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeFn, nil
}
