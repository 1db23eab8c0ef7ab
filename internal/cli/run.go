package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/afep/internal/afep"
	"github.com/ppiankov/afep/internal/diagnostics"
	"github.com/ppiankov/afep/internal/pipeline"
	"github.com/ppiankov/afep/internal/store"
)

var runTimeout time.Duration

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <datadir>...",
	Short: "Select a phenotype concept dictionary from extractor output",
	Long: `Run reads concept-extractor output for one phenotype and:
- keeps concepts mentioned by at least half of the distinct sources
- restricts the coverage matrix to clinical semantic types (--semtypes all to disable)
- selects concepts with a greedy weighted set cover over all mention locations
- merges the metadata of every selected concept into a dictionary

Files are named <Source>_<Subject>.json; the prefix before the delimiter is the source.

Outputs (in --outpath):
  afep_dict_<timestamp>.csv           merged dictionary
  afep_selected_cuis_<timestamp>.csv  selected concepts, one per line
  afep_report_<timestamp>.json        run report with diagnostic signals

Example:
  afep run out/covid
  afep run out/flu out/flu-extra --outpath dict --semtypes dsyn,sosy,fndg
  afep run out/covid --db runs.db -v`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("outformat", "json", "concept extractor output format")
	runCmd.Flags().String("outpath", ".", "output directory")
	runCmd.Flags().StringSlice("semtypes", nil, `semantic types (abbreviation or TUI) allowed in the coverage matrix; "all" disables the restriction (default: clinical types)`)
	runCmd.Flags().String("delimiter", "_", "separator between source prefix and subject in file names")
	runCmd.Flags().Int("concurrency", runtime.NumCPU(), "number of files parsed in parallel")
	runCmd.Flags().String("db", "", "SQLite file to record the run in (optional)")
	runCmd.Flags().Bool("no-cache", false, "disable the parsed-file cache")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")

	for key, flag := range map[string]string{
		"run.outformat":        "outformat",
		"run.outpath":          "outpath",
		"run.semantic_types":   "semtypes",
		"run.source_delimiter": "delimiter",
		"run.workers":          "concurrency",
		"run.db":               "db",
	} {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Data dirs: %v\n", args)
		fmt.Fprintf(os.Stderr, "Format: %s  Workers: %d  Cache: %v\n", cfg.Run.OutFormat, cfg.Run.Workers, cfg.Cache.Enabled)
		if allowed := afep.AllowedSemanticTypes(cfg.Run.SemanticTypes); len(allowed) > 0 {
			fmt.Fprintf(os.Stderr, "Semantic types: %v\n", allowed)
		} else {
			fmt.Fprintf(os.Stderr, "Semantic types: all\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	var runStore pipeline.RunStore
	if cfg.Run.DB != "" {
		st, err := store.Open(ctx, cfg.Run.DB)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer func() { _ = st.Close() }()
		runStore = st
	}

	p := pipeline.NewPipeline(cfg, newCache(cfg), runStore, logger)
	if verbose {
		p.WithProgress(os.Stderr)
		fmt.Fprintf(os.Stderr, "⚙️  Parsing extractor output...\n")
	}

	result, err := p.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote dictionary: %s\n", result.Files.Dictionary)
		fmt.Fprintf(os.Stderr, "✓ Wrote selected concepts: %s\n", result.Files.Selected)
		fmt.Fprintf(os.Stderr, "✓ Wrote report: %s\n", result.Files.Report)
		if cfg.Run.DB != "" {
			fmt.Fprintf(os.Stderr, "✓ Stored run %s in %s\n", result.Report.RunID, cfg.Run.DB)
		}
	}

	p.RenderSummary(os.Stdout, result.Report)

	if diagnostics.HasCritical(result.Report.Signals) {
		fmt.Fprintf(os.Stderr, "\n⚠️  Critical signals raised; review %s before using the dictionary\n", result.Files.Report)
	}
	return nil
}
