package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"folio/internal/auth"
	"folio/internal/database"

	"github.com/spf13/cobra"
)

const (
	// Sessions are only created by the server; the TTL passed to the auth
	// service here never produces one.
	cliSessionTTL = 30 * 24 * time.Hour

	defaultDataDir = "./data"
)

func main() {
	// Keep scanner and database chatter out of command output unless the
	// operator asked for it.
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		os.Setenv("LOG_LEVEL", "warn")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "folioctl",
		Short: "Administer a folio catalog",
		Long: `folioctl manages users, libraries, and the book index of a folio
catalog server. It operates directly on the database, so the server
does not need to be running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("data-dir", "",
		"data directory holding folio.db (default $DATA_DIR or "+defaultDataDir+")")

	root.AddCommand(
		newUserCmd(),
		newLibraryCmd(),
		newScanCmd(),
		newStatsCmd(),
	)

	return root
}

// resolveDataDir picks the data directory: flag, then DATA_DIR, then the
// default. The same precedence the server uses.
func resolveDataDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir
	}
	return defaultDataDir
}

// openDatabase opens (creating when absent) the catalog database under
// the resolved data directory. Callers own the Close.
func openDatabase(cmd *cobra.Command) (*database.Database, error) {
	dataDir := resolveDataDir(cmd)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	db, err := database.New(cmd.Context(), filepath.Join(dataDir, "folio.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database in %s: %w", dataDir, err)
	}
	return db, nil
}

func authService(db *database.Database) *auth.Service {
	return auth.New(db, cliSessionTTL, true)
}
