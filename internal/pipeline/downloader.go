package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/afep/internal/cache"
	"github.com/ppiankov/afep/internal/extract"
	"github.com/ppiankov/afep/internal/logging"
	"github.com/ppiankov/afep/internal/model"
	"github.com/ppiankov/afep/internal/util"
	"github.com/ppiankov/afep/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Downloader turns one fetch target into a corpus text file. It implements
// worker.Downloader.
type Downloader struct {
	fetcher   *Fetcher
	robots    *util.RobotsChecker // nil when robots.txt is ignored
	limiter   *worker.Limiter
	cache     cache.Cache
	cacheTTL  time.Duration
	extractor *extract.TextExtractor
	outDir    string
	delimiter string
	logger    *logging.Logger
}

// NewDownloader creates a downloader writing into cfg.Fetch.OutDir
func NewDownloader(cfg *model.Config, c cache.Cache, logger *logging.Logger) *Downloader {
	if c == nil {
		c = cache.NoopCache{}
	}
	if logger == nil {
		logger = logging.Nop()
	}

	fc := cfg.Fetch
	fetcher := NewFetcher(fc.Timeout, fc.UserAgent, fc.MaxBodyBytes, fc.Insecure, fc.HTTPProxy, fc.HTTPSProxy, fc.NoProxy).
		WithAttempts(fc.Retries)

	d := &Downloader{
		fetcher:   fetcher,
		limiter:   worker.NewLimiter(fc.RequestsPerSecond, fc.BurstSize),
		cache:     c,
		cacheTTL:  cfg.Cache.DiskTTL,
		extractor: extract.NewTextExtractor(),
		outDir:    fc.OutDir,
		delimiter: cfg.Run.SourceDelimiter,
		logger:    logger,
	}
	if fc.RespectRobots {
		d.robots = util.NewRobotsChecker(fc.UserAgent, fetcher.Client())
	}
	return d
}

// Download fetches target, extracts its readable text and writes it to
// <outDir>/<Source>_<Subject>.txt
func (d *Downloader) Download(ctx context.Context, target model.FetchTarget) (*model.FetchedDocument, error) {
	if target.Source == "" {
		target.Source = SourceFromURL(target.URL)
	}
	target.Source = sanitizeName(target.Source, d.delimiter)
	if target.Source == "" {
		return nil, fmt.Errorf("no source name for %s", target.URL)
	}

	key := cache.CacheKey("fetch", target.URL)
	if data, ok := d.cache.Get(key); ok {
		var doc model.FetchedDocument
		if err := json.Unmarshal(data, &doc); err == nil {
			doc.Target = target
			doc.Cached = true
			d.logger.Debug("fetch cache hit", "url", target.URL)
			return d.write(&doc)
		}
	}

	if d.robots != nil {
		allowed, delay, err := d.robots.CanFetch(ctx, target.URL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", target.URL, ErrDisallowed)
		}
		if domain, err := hostOf(target.URL); err == nil {
			d.limiter.SetCrawlDelay(domain, delay)
		}
	}

	if err := d.limiter.Wait(ctx, target.URL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	fetched, err := d.fetcher.FetchWithRetry(ctx, target.URL)
	if err != nil {
		return nil, err
	}

	article, err := d.extractor.Extract(fetched.HTML, fetched.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if article.Text == "" {
		return nil, fmt.Errorf("no readable text at %s", fetched.FinalURL)
	}

	doc := &model.FetchedDocument{
		Target:    target,
		Subject:   fetched.Subject,
		Text:      article.Text,
		FinalURL:  fetched.FinalURL,
		FetchedAt: time.Now().UTC(),
		FetchMeta: fetched.Meta,
	}
	d.logger.Debug("fetched", "url", target.URL, "mode", article.Mode, "chars", len(article.Text))

	if data, err := json.Marshal(doc); err == nil {
		if err := d.cache.Set(key, data, d.cacheTTL); err != nil {
			d.logger.Warn("cache write failed", "url", target.URL, "error", err)
		}
	}

	return d.write(doc)
}

func (d *Downloader) write(doc *model.FetchedDocument) (*model.FetchedDocument, error) {
	subject := sanitizeName(doc.Subject, "")
	if subject == "" {
		subject = "article"
	}

	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	sep := d.delimiter
	if sep == "" {
		sep = "_"
	}
	doc.Path = filepath.Join(d.outDir, doc.Target.Source+sep+subject+".txt")

	if err := os.WriteFile(doc.Path, []byte(doc.Text+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", doc.Path, err)
	}
	return doc, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName makes s safe as a file name part. Spaces become hyphens and
// the source delimiter is removed so the source prefix stays unambiguous.
func sanitizeName(s, delimiter string) string {
	s = strings.Join(strings.Fields(s), "-")
	if delimiter != "" {
		s = strings.ReplaceAll(s, delimiter, "")
	}
	s = unsafeName.ReplaceAllString(s, "")
	return strings.Trim(s, ".-")
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
