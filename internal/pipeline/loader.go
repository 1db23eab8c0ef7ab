package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/cheggaaa/pb.v1"

	"github.com/ppiankov/afep/internal/cache"
	"github.com/ppiankov/afep/internal/extract/adapters"
	"github.com/ppiankov/afep/internal/logging"
	"github.com/ppiankov/afep/internal/model"
	"github.com/ppiankov/afep/internal/validate"
	"github.com/ppiankov/afep/internal/worker"
)

// Corpus is every mention record read from the data directories
type Corpus struct {
	Records   []model.MentionRecord
	Files     int
	Documents int
	Cached    int // Files served from the parse cache
}

// Loader reads concept-extractor output files into mention records
type Loader struct {
	registry  *adapters.Registry
	cache     cache.Cache
	cacheTTL  time.Duration
	workers   int
	delimiter string
	progress  io.Writer // nil disables the progress bar
	logger    *logging.Logger
}

// NewLoader creates a loader for the run settings in cfg
func NewLoader(cfg *model.Config, c cache.Cache, logger *logging.Logger) *Loader {
	if c == nil {
		c = cache.NoopCache{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{
		registry:  adapters.NewRegistry(),
		cache:     c,
		cacheTTL:  cfg.Cache.DiskTTL,
		workers:   cfg.Run.Workers,
		delimiter: cfg.Run.SourceDelimiter,
		logger:    logger,
	}
}

// WithProgress draws a progress bar on w while files are parsed
func (l *Loader) WithProgress(w io.Writer) *Loader {
	l.progress = w
	return l
}

// Load parses every output file of the given format in dirs. Records come
// back validated and ordered by document, then by event number.
func (l *Loader) Load(ctx context.Context, format string, dirs []string) (*Corpus, error) {
	adapter, err := l.registry.FindAdapter(format)
	if err != nil {
		return nil, err
	}

	files, err := l.listFiles(dirs, adapter.Pattern())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		l.logger.Warn("no extractor output found", "format", adapter.Name(), "dirs", dirs)
		return &Corpus{}, nil
	}

	var bar *pb.ProgressBar
	if l.progress != nil {
		bar = pb.New(len(files))
		bar.Output = l.progress
		bar.Prefix("parse ")
		bar.Start()
	}

	pool := worker.NewPool(ctx, l.workers)
	pool.Start()
	for _, path := range files {
		pool.Submit(&parseJob{
			path:    path,
			doc:     adapters.DocumentFromPath(path, l.delimiter),
			adapter: adapter,
			cache:   l.cache,
			ttl:     l.cacheTTL,
			bar:     bar,
		})
	}
	results := pool.Wait()
	if bar != nil {
		bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(results) != len(files) {
		return nil, fmt.Errorf("parsed %d of %d files", len(results), len(files))
	}
	if err := worker.FirstError(results); err != nil {
		return nil, err
	}

	corpus := &Corpus{Files: len(files)}
	docs := make(map[string]bool)
	for _, r := range results {
		pr := r.(*parseResult)
		if pr.cached {
			corpus.Cached++
		}
		corpus.Records = append(corpus.Records, pr.records...)
		docs[pr.doc.ID] = true
	}
	corpus.Documents = len(docs)

	if err := validate.Records(corpus.Records); err != nil {
		return nil, fmt.Errorf("validate records: %w", err)
	}

	sortRecords(corpus.Records)

	l.logger.Info("corpus loaded",
		"files", corpus.Files,
		"documents", corpus.Documents,
		"mentions", len(corpus.Records),
		"cached", corpus.Cached)
	if r, ok := l.cache.(cache.StatsReporter); ok {
		st := r.Stats()
		l.logger.Debug("parse cache", "memory_hits", st.MemoryHits, "disk_hits", st.DiskHits, "misses", st.Misses)
	}

	return corpus, nil
}

// listFiles globs every directory (non-recursive) in sorted order
func (l *Loader) listFiles(dirs []string, pattern string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("data dir: %s is not a directory", dir)
		}

		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// sortRecords orders records by document id, then by the event counter
// suffix of their event id
func sortRecords(records []model.MentionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return eventNumber(a.EventID) < eventNumber(b.EventID)
	})
}

func eventNumber(eventID string) int {
	idx := strings.LastIndex(eventID, "_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(eventID[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// parseJob parses one output file, going through the parse cache
type parseJob struct {
	path    string
	doc     adapters.Document
	adapter adapters.Adapter
	cache   cache.Cache
	ttl     time.Duration
	bar     *pb.ProgressBar
}

// parseResult is the outcome of a parseJob
type parseResult struct {
	doc     adapters.Document
	records []model.MentionRecord
	cached  bool
	err     error
}

func (r *parseResult) GetError() error {
	return r.err
}

// Execute reads and parses the file
func (j *parseJob) Execute(ctx context.Context) worker.Result {
	if j.bar != nil {
		defer j.bar.Increment()
	}
	res := &parseResult{doc: j.doc}

	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	info, err := os.Stat(j.path)
	if err != nil {
		res.err = fmt.Errorf("stat %s: %w", j.path, err)
		return res
	}
	key := cache.CacheKey("parse", j.adapter.Name(), j.doc.Source, j.path,
		strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))

	if data, ok := j.cache.Get(key); ok {
		var records []model.MentionRecord
		if err := json.Unmarshal(data, &records); err == nil {
			res.records = records
			res.cached = true
			return res
		}
	}

	f, err := os.Open(j.path)
	if err != nil {
		res.err = fmt.Errorf("open %s: %w", j.path, err)
		return res
	}
	defer func() { _ = f.Close() }()

	records, err := j.adapter.Parse(f, j.doc)
	if err != nil {
		res.err = fmt.Errorf("parse %s: %w", j.path, err)
		return res
	}
	res.records = records

	if data, err := json.Marshal(records); err == nil {
		_ = j.cache.Set(key, data, j.ttl)
	}

	return res
}
