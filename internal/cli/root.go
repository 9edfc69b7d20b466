// Package cli defines the cobra command tree for wikicomments.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/wikicomments/backend/internal/config"
	"github.com/emilythestrangee/wikicomments/backend/internal/database"
	"github.com/emilythestrangee/wikicomments/backend/internal/logging"
)

var flagEnvFile string

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wikicomments",
		Short:         "Comment service for wiki pages and maps",
		Long:          "Serves authenticated comment posting, editing, deletion and fetching for wiki pages and maps.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment (missing file is ignored)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return root
}

// bootstrap loads configuration, sets up logging and opens the database.
func bootstrap() (*config.Config, *slog.Logger, database.Service, error) {
	cfg, err := config.New(flagEnvFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.IsDev())

	db, err := database.New(cfg.Postgres, cfg.IsDev())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, logger, db, nil
}

// closeDB closes the database, logging any error.
func closeDB(logger *slog.Logger, db database.Service) {
	if err := db.Close(); err != nil {
		logger.Warn("closing database", "error", err)
	}
}
