package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// Downloader fetches one article and stores its text in the corpus
type Downloader interface {
	Download(ctx context.Context, target model.FetchTarget) (*model.FetchedDocument, error)
}

// FetchJob represents one article download
type FetchJob struct {
	Target     model.FetchTarget
	Downloader Downloader
}

// Execute executes the fetch job
func (j *FetchJob) Execute(ctx context.Context) Result {
	doc, err := j.Downloader.Download(ctx, j.Target)
	if err != nil {
		return &FetchResult{Target: j.Target, Error: err}
	}
	return &FetchResult{Target: j.Target, Document: doc}
}

// FetchResult represents the result of a fetch job
type FetchResult struct {
	Target   model.FetchTarget
	Document *model.FetchedDocument
	Error    error
}

// GetError returns the error from the fetch result
func (r *FetchResult) GetError() error {
	return r.Error
}

// BatchProcessor downloads many articles concurrently
type BatchProcessor struct {
	downloader  Downloader
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(downloader Downloader, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		downloader:  downloader,
		concurrency: concurrency,
	}
}

// ProcessTargets downloads every target. Results are in input order.
func (b *BatchProcessor) ProcessTargets(ctx context.Context, targets []model.FetchTarget) []*FetchResult {
	if len(targets) == 0 {
		return []*FetchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, target := range targets {
		pool.Submit(&FetchJob{Target: target, Downloader: b.downloader})
	}

	results := pool.Wait()

	fetchResults := make([]*FetchResult, len(results))
	for i, result := range results {
		fetchResults[i] = result.(*FetchResult)
	}

	return fetchResults
}

// ProcessFile reads targets from a file and downloads them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*FetchResult, error) {
	targets, err := ReadTargetsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	return b.ProcessTargets(ctx, targets), nil
}

// ReadTargetsFromFile reads fetch targets from a file
func ReadTargetsFromFile(filePath string) ([]model.FetchTarget, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseTargets(file)
}

// ParseTargets reads one target per line, either "URL" or "SOURCE URL".
// Blank lines and # comments are skipped and repeated URLs are dropped.
func ParseTargets(r io.Reader) ([]model.FetchTarget, error) {
	var targets []model.FetchTarget
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var target model.FetchTarget
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			target.URL = fields[0]
		case 2:
			target.Source, target.URL = fields[0], fields[1]
		default:
			return nil, fmt.Errorf("line %d: expected \"URL\" or \"SOURCE URL\", got %q", lineNo, line)
		}

		if u, err := url.Parse(target.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("line %d: invalid URL %q", lineNo, target.URL)
		}

		if !seen[target.URL] {
			seen[target.URL] = true
			targets = append(targets, target)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return targets, nil
}
