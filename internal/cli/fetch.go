package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/afep/internal/pipeline"
	"github.com/ppiankov/afep/internal/worker"
)

var fetchTimeout time.Duration

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <urls-file>",
	Short: "Download knowledge-source articles into a corpus directory",
	Long: `Fetch downloads the articles a phenotype dictionary is built from:
- Read targets from the input file, one per line: "URL" or "SOURCE URL"
- Respect robots.txt and rate-limit every host
- Extract the readable article text
- Write <Source>_<Subject>.txt into the output directory

Without an explicit SOURCE the host name decides: en.wikipedia.org becomes Wikipedia.

Example:
  afep fetch urls.txt --out-dir corpus/flu
  afep fetch urls.txt --concurrency 8 --timeout 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("out-dir", "corpus", "directory for downloaded article text")
	fetchCmd.Flags().Int("concurrency", 4, "number of concurrent downloads")
	fetchCmd.Flags().Duration("request-timeout", 30*time.Second, "timeout for a single HTTP request")
	fetchCmd.Flags().String("ua", "AFEP/0.3 (+https://github.com/ppiankov/afep)", "HTTP User-Agent")
	fetchCmd.Flags().Bool("no-robots", false, "ignore robots.txt")
	fetchCmd.Flags().Bool("no-cache", false, "disable cache (force fresh fetch)")
	fetchCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	fetchCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fetchCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 10*time.Minute, "total timeout for the whole fetch")

	for key, flag := range map[string]string{
		"fetch.out_dir":     "out-dir",
		"fetch.workers":     "concurrency",
		"fetch.timeout":     "request-timeout",
		"fetch.user_agent":  "ua",
		"fetch.insecure":    "insecure",
		"fetch.http_proxy":  "http-proxy",
		"fetch.https_proxy": "https-proxy",
	} {
		_ = viper.BindPFlag(key, fetchCmd.Flags().Lookup(flag))
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if noRobots, _ := cmd.Flags().GetBool("no-robots"); noRobots {
		cfg.Fetch.RespectRobots = false
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	targets, err := worker.ReadTargetsFromFile(file)
	if err != nil {
		return fmt.Errorf("read targets: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  AFEP Corpus Fetch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d URLs)\n", file, len(targets))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Fetch.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Fetch.OutDir)
	fmt.Fprintf(os.Stderr, "  robots.txt:   %v\n", cfg.Fetch.RespectRobots)
	fmt.Fprintf(os.Stderr, "\n")

	downloader := pipeline.NewDownloader(cfg, newCache(cfg), logger)
	processor := worker.NewBatchProcessor(downloader, cfg.Fetch.Workers)
	results := processor.ProcessTargets(ctx, targets)

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Target.URL, result.Error)
			continue
		}
		successCount++

		note := ""
		if result.Document.Cached {
			note = " (cached)"
		}
		fmt.Fprintf(os.Stderr, "✓ %s → %s%s\n", result.Target.URL, result.Document.Path, note)
	}
	// Targets dropped by a cancelled context produce no result
	failureCount += len(targets) - len(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d URLs\n", len(targets))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if len(targets) > 0 && successCount == 0 {
		return fmt.Errorf("all %d downloads failed", len(targets))
	}
	return nil
}
