// Package memory implements the external memory store referenced by
// spec.md §4.G (auto-memory flush) and §4.I's memory_status/search/
// append/bootstrap RPC category: plain Markdown files under the data
// directory, append-only, one "daily" log per calendar day plus a
// single long-lived "curated" document. Grounded in the teacher's
// plain-file persistence style (internal/store) rather than a database,
// since the entries are themselves Markdown meant to be read directly
// (an obsidian_root workspace setting can point a vault at this
// directory) and append-then-grep is all the spec's memory_search needs.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is an append-only Markdown memory store rooted at dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a Store rooted at dir. The directory is created lazily on
// first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) dailyPath(workspaceID string, t time.Time) string {
	return filepath.Join(s.dir, "daily", workspaceID, t.Format("2006-01-02")+".md")
}

func (s *Store) curatedPath(workspaceID string) string {
	return filepath.Join(s.dir, "curated", workspaceID+".md")
}

// Entry is one appended record, as returned by Search.
type Entry struct {
	Path     string
	Markdown string
	Tags     []string
}

// AppendDaily appends markdown to today's daily log for workspaceID.
func (s *Store) AppendDaily(ctx context.Context, workspaceID string, markdown string, tags []string) error {
	return s.append(s.dailyPath(workspaceID, time.Now()), markdown, tags)
}

// AppendCurated appends markdown to workspaceID's curated document.
func (s *Store) AppendCurated(ctx context.Context, workspaceID string, markdown string, tags []string) error {
	return s.append(s.curatedPath(workspaceID), markdown, tags)
}

func (s *Store) append(path, markdown string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("memory: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("memory: open %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("time: " + time.Now().Format(time.RFC3339) + "\n")
	if len(tags) > 0 {
		b.WriteString("tags: [" + strings.Join(tags, ", ") + "]\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(markdown)
	b.WriteString("\n\n")

	_, err = f.WriteString(b.String())
	return err
}

// Bootstrap ensures the per-workspace directories exist, so a client can
// open the data directory as an Obsidian-style vault before any entry has
// been written.
func (s *Store) Bootstrap(workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(s.dir, "daily", workspaceID), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(s.dir, "curated"), 0o755)
}

// Status reports how many daily logs and whether a curated document
// exists for workspaceID.
type Status struct {
	DailyEntryCount int  `json:"daily_entry_count"`
	CuratedExists   bool `json:"curated_exists"`
}

// Status returns the current record counts for workspaceID.
func (s *Store) Status(workspaceID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Status
	entries, err := os.ReadDir(filepath.Join(s.dir, "daily", workspaceID))
	if err != nil && !os.IsNotExist(err) {
		return Status{}, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			st.DailyEntryCount++
		}
	}
	if _, err := os.Stat(s.curatedPath(workspaceID)); err == nil {
		st.CuratedExists = true
	}
	return st, nil
}

// Search returns every daily-log file (across all days) for workspaceID
// whose contents contain query, each as one whole-file Entry, newest file
// first, plus the curated document if it matches. This is intentionally a plain substring scan, not an index:
// the store is sized for a single user's notes, not a search corpus.
func (s *Store) Search(workspaceID, query string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []Entry
	dir := filepath.Join(s.dir, "daily", workspaceID)
	files, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() > files[j].Name() })

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			continue
		}
		if strings.Contains(string(data), query) {
			results = append(results, Entry{Path: filepath.Join(dir, f.Name()), Markdown: string(data)})
		}
	}

	curated := s.curatedPath(workspaceID)
	if data, err := os.ReadFile(curated); err == nil && strings.Contains(string(data), query) {
		results = append(results, Entry{Path: curated, Markdown: string(data)})
	}
	return results, nil
}
