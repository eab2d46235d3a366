package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/queue"
	"github.com/benvon/assistant-chat/internal/services/oidc"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Schema is up to date\n", okMark("✓"))
			return nil
		},
	}
}

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test connectivity to configured dependencies",
		Long:  "Checks the database, Redis, RabbitMQ and the JWKS endpoint when each is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, heading("Testing configured dependencies"))

			failed := 0
			for _, c := range dependencyChecks(cfg) {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				err := c.run(ctx)
				cancel()
				report(out, c.name, err)
				if err != nil {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d dependency check(s) failed", failed)
			}
			_, _ = fmt.Fprintf(out, "\n%s All checks passed\n", okMark("✓"))
			return nil
		},
	}
}

type dependencyCheck struct {
	name string
	run  func(ctx context.Context) error
}

func dependencyChecks(cfg *config.Config) []dependencyCheck {
	var checks []dependencyCheck

	if cfg.StoreDriver == config.StoreDriverPostgres {
		checks = append(checks, dependencyCheck{"database", func(ctx context.Context) error {
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return db.PingContext(ctx)
		}})
	}
	if cfg.RedisURL != "" {
		checks = append(checks, dependencyCheck{"redis", func(ctx context.Context) error {
			client, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				return err
			}
			return client.Close()
		}})
	}
	if cfg.UsesQueue() {
		checks = append(checks, dependencyCheck{"rabbitmq", func(ctx context.Context) error {
			q, err := queue.DialWithRetry(ctx, cfg.RabbitMQURL, 1, nil)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			return q.HealthCheck(ctx)
		}})
	}
	if cfg.AuthJWKSURL != "" {
		checks = append(checks, dependencyCheck{"jwks", func(ctx context.Context) error {
			set, err := oidc.NewJWKSManager(0).GetJWKS(ctx, cfg.AuthJWKSURL)
			if err != nil {
				return err
			}
			if set.Len() == 0 {
				return fmt.Errorf("key set at %s is empty", cfg.AuthJWKSURL)
			}
			return nil
		}})
	}

	return checks
}

func report(w io.Writer, name string, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(w, "%s %s: %v\n", failMark("✗"), name, err)
		return
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", okMark("✓"), name)
}
