package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/afep/internal/cache"
	"github.com/ppiankov/afep/internal/model"
)

const articleHTML = `<html><head><title>Influenza</title></head><body>
<nav>Main page</nav>
<div id="content"><h1>Influenza</h1>
<p>Influenza, commonly known as the flu, is an infectious disease caused by influenza viruses.
Symptoms range from mild to severe and often include fever, runny nose, sore throat, muscle pain,
headache, coughing, and fatigue.</p>
<p>These symptoms begin one to four days after exposure to the virus and last for about two to eight days.
Influenza may progress to pneumonia from the virus or a subsequent bacterial infection.</p>
</div></body></html>`

func newArticleServer(t *testing.T, pageHits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		case strings.HasPrefix(r.URL.Path, "/wiki/"):
			atomic.AddInt32(pageHits, 1)
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, articleHTML)
		case r.URL.Path == "/empty":
			_, _ = fmt.Fprint(w, "<html><body></body></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFetchConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Fetch.OutDir = filepath.Join(t.TempDir(), "corpus")
	cfg.Fetch.RequestsPerSecond = 100
	cfg.Fetch.BurstSize = 10
	cfg.Fetch.Timeout = 5 * time.Second
	return cfg
}

func TestDownloader_Download(t *testing.T) {
	var hits int32
	srv := newArticleServer(t, &hits)
	cfg := testFetchConfig(t)
	d := NewDownloader(cfg, cache.NewMemoryCache(time.Minute, time.Minute), nil)

	doc, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/wiki/Influenza", Source: "Wikipedia"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	wantPath := filepath.Join(cfg.Fetch.OutDir, "Wikipedia_Influenza.txt")
	if doc.Path != wantPath {
		t.Errorf("Expected path %s, got %s", wantPath, doc.Path)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read corpus file: %v", err)
	}
	if !strings.Contains(string(data), "infectious disease caused by influenza viruses") {
		t.Errorf("Unexpected corpus text: %s", data)
	}
	if strings.Contains(string(data), "Main page") {
		t.Error("Navigation leaked into corpus text")
	}
	if doc.Cached {
		t.Error("First download should not be cached")
	}

	again, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/wiki/Influenza", Source: "Wikipedia"})
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if !again.Cached {
		t.Error("Second download should come from the cache")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected 1 page fetch, got %d", n)
	}
}

func TestDownloader_SourceSanitized(t *testing.T) {
	var hits int32
	srv := newArticleServer(t, &hits)
	cfg := testFetchConfig(t)
	d := NewDownloader(cfg, nil, nil)

	doc, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/wiki/Flu_season", Source: "Medline_Plus"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := filepath.Base(doc.Path); got != "MedlinePlus_Flu-season.txt" {
		t.Errorf("Unexpected file name %s", got)
	}
	if doc.Target.Source != "MedlinePlus" {
		t.Errorf("Expected delimiter stripped from source, got %s", doc.Target.Source)
	}
}

func TestDownloader_RobotsDisallowed(t *testing.T) {
	var hits int32
	srv := newArticleServer(t, &hits)
	d := NewDownloader(testFetchConfig(t), nil, nil)

	_, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/private/notes", Source: "Site"})
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
}

func TestDownloader_IgnoreRobots(t *testing.T) {
	var hits int32
	srv := newArticleServer(t, &hits)
	cfg := testFetchConfig(t)
	cfg.Fetch.RespectRobots = false
	d := NewDownloader(cfg, nil, nil)

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	// Not disallowed any more, so the request reaches the 404 handler
	_, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/private/notes", Source: "Site"})
	if err == nil || errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected HTTP error, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected 404 in error, got %v", err)
	}
}

func TestDownloader_NoReadableText(t *testing.T) {
	var hits int32
	srv := newArticleServer(t, &hits)
	d := NewDownloader(testFetchConfig(t), nil, nil)

	if _, err := d.Download(context.Background(), model.FetchTarget{URL: srv.URL + "/empty", Source: "Site"}); err == nil {
		t.Fatal("Expected error for page without text")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, delimiter, want string
	}{
		{"Coronavirus disease 2019", "", "Coronavirus-disease-2019"},
		{"Medline_Plus", "_", "MedlinePlus"},
		{"Sjögren syndrome", "", "Sjgren-syndrome"},
		{"../../etc/passwd", "", "etcpasswd"},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in, tt.delimiter); got != tt.want {
			t.Errorf("sanitizeName(%q, %q) = %q, want %q", tt.in, tt.delimiter, got, tt.want)
		}
	}
}
