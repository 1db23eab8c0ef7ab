package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/afep/internal/store"
)

// lastCmd represents the last command
var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent run recorded in the run store",
	Long: `Last prints the most recent run saved with "afep run --db" together with its
selected concepts in selection order.

Example:
  afep last --db runs.db`,
	Args: cobra.NoArgs,
	RunE: runLast,
}

func init() {
	rootCmd.AddCommand(lastCmd)

	lastCmd.Flags().String("db", "", "SQLite run store (default: run.db from config)")
}

func runLast(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Run.DB = db
	}
	if cfg.Run.DB == "" {
		return fmt.Errorf("no run store configured (use --db or run.db)")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Run.DB)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() { _ = st.Close() }()

	run, err := st.LatestRun(ctx)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No runs recorded in %s\n", cfg.Run.DB)
		return nil
	}
	if err != nil {
		return err
	}

	entries, err := st.Dictionary(ctx, run.ID)
	if err != nil {
		return err
	}
	picks, err := st.Selections(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:        %s\n", run.ID)
	fmt.Printf("Started:    %s (%s)\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Printf("Data dirs:  %v\n", run.DataDirs)
	fmt.Printf("Sources:    %d (threshold %d)\n", run.TotalSources, run.Threshold)
	fmt.Printf("Concepts:   %d loaded → %d corroborated → %d selected\n",
		run.Counts.ConceptsLoaded, run.Counts.ConceptsCorroborated, run.Counts.ConceptsSelected)
	fmt.Println()

	for i, p := range picks {
		name := ""
		if i < len(entries) && entries[i].ConceptID == p.ConceptID {
			name = entries[i].PreferredName
		}
		fmt.Printf("  %2d. %s  %-30s weight %d, covered %d\n", i+1, p.ConceptID, name, p.Weight, p.Covered)
	}
	return nil
}
