// ABOUTME: Markdown window pages rendered with goldmark and cached in memory
// ABOUTME: An fsnotify watcher on the content directory invalidates cached pages

package pages

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
)

// ErrNotFound is returned for unknown or malformed slugs.
var ErrNotFound = errors.New("page not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidSlug reports whether s can name a page.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Page is a rendered content file.
type Page struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Summary is the list form of a Page.
type Summary struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Library serves the pages in one content directory.
type Library struct {
	dir    string
	md     goldmark.Markdown
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Page
	gen   uint64 // bumped on every invalidation

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open creates a Library for dir. An empty or missing dir yields a Library
// with no pages. The watcher is started when dir exists.
func Open(dir string, logger *slog.Logger) (*Library, error) {
	l := &Library{
		dir:    dir,
		md:     goldmark.New(),
		logger: logger,
		cache:  make(map[string]*Page),
	}
	if dir == "" {
		return l, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("content directory does not exist", "dir", dir)
		return l, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating content watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching content dir %s: %w", dir, err)
	}
	l.watcher = watcher
	l.done = make(chan struct{})
	go l.watch()

	return l, nil
}

// List returns a summary of every page, sorted by slug.
func (l *Library) List() ([]Summary, error) {
	out := []Summary{}
	if l.dir == "" {
		return out, nil
	}

	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading content dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		slug, ok := strings.CutSuffix(e.Name(), ".md")
		if !ok || !ValidSlug(slug) {
			continue
		}
		p, err := l.Get(slug)
		if err != nil {
			l.logger.Warn("skipping unreadable page", "slug", slug, "error", err)
			continue
		}
		out = append(out, Summary{Slug: p.Slug, Title: p.Title})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Get returns the rendered page for slug.
func (l *Library) Get(slug string) (*Page, error) {
	if l.dir == "" || !ValidSlug(slug) {
		return nil, ErrNotFound
	}

	l.mu.RLock()
	p, ok := l.cache[slug]
	gen := l.gen
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	src, err := os.ReadFile(filepath.Join(l.dir, slug+".md"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading page %s: %w", slug, err)
	}

	var buf bytes.Buffer
	if err := l.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("rendering page %s: %w", slug, err)
	}

	p = &Page{Slug: slug, Title: extractTitle(src, slug), HTML: buf.String()}

	// Skip caching if the directory changed while rendering.
	l.mu.Lock()
	if l.gen == gen {
		l.cache[slug] = p
	}
	l.mu.Unlock()
	return p, nil
}

// Cached reports how many pages are currently cached.
func (l *Library) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Close stops the watcher.
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	<-l.done
	return err
}

func (l *Library) watch() {
	defer close(l.done)
	for {
		select {
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(ev)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("content watcher error", "error", err)
		}
	}
}

func (l *Library) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	slug, ok := strings.CutSuffix(filepath.Base(ev.Name), ".md")
	if !ok {
		return
	}

	l.mu.Lock()
	delete(l.cache, slug)
	l.gen++
	l.mu.Unlock()
	l.logger.Debug("page invalidated", "slug", slug, "op", ev.Op.String())
}

// extractTitle returns the text of the first level-one heading, or fallback.
func extractTitle(src []byte, fallback string) string {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if title, ok := strings.CutPrefix(line, "# "); ok {
			if title = strings.TrimSpace(title); title != "" {
				return title
			}
		}
	}
	return fallback
}
