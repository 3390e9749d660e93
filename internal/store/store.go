// Package store implements spec.md §4.B: the three JSON snapshot files
// (workspaces.json, settings.json, domains.json) under the daemon's data
// directory. Each document is guarded by its own mutex, grounded in the
// teacher's one-lock-per-document pattern (internal/quota.Manager) and its
// atomic-write helper (internal/util.AtomicWriteFile).
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/util"
)

// Store owns the three persisted documents for one data directory.
type Store struct {
	dir string

	workspacesMu sync.RWMutex
	settingsMu   sync.RWMutex
	domainsMu    sync.RWMutex
}

// New returns a Store rooted at dir. It does not touch the filesystem
// until a Load/Save call is made.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) workspacesPath() string { return filepath.Join(s.dir, "workspaces.json") }
func (s *Store) settingsPath() string   { return filepath.Join(s.dir, "settings.json") }
func (s *Store) domainsPath() string    { return filepath.Join(s.dir, "domains.json") }

// LoadWorkspaces returns the persisted workspace list, or an empty slice
// if workspaces.json does not exist yet.
func (s *Store) LoadWorkspaces() ([]model.WorkspaceEntry, error) {
	s.workspacesMu.RLock()
	defer s.workspacesMu.RUnlock()

	var entries []model.WorkspaceEntry
	if err := readJSONOrDefault(s.workspacesPath(), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.WorkspaceEntry{}
	}
	return entries, nil
}

// SaveWorkspaces overwrites workspaces.json atomically.
func (s *Store) SaveWorkspaces(entries []model.WorkspaceEntry) error {
	s.workspacesMu.Lock()
	defer s.workspacesMu.Unlock()

	if entries == nil {
		entries = []model.WorkspaceEntry{}
	}
	return util.AtomicWriteJSON(s.workspacesPath(), entries)
}

// LoadSettings returns the persisted app settings, or defaults if
// settings.json does not exist yet.
func (s *Store) LoadSettings() (model.AppSettings, error) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()

	settings := model.AppSettings{AutoMemory: model.DefaultAutoMemorySettings()}
	if err := readJSONOrDefault(s.settingsPath(), &settings); err != nil {
		return model.AppSettings{}, err
	}
	return settings, nil
}

// SaveSettings overwrites settings.json atomically.
func (s *Store) SaveSettings(settings model.AppSettings) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	return util.AtomicWriteJSON(s.settingsPath(), settings)
}

// LoadDomains returns the persisted domain list. If domains.json does not
// exist yet, it materializes the seed set from SeedDomains and persists it
// immediately, matching spec.md §4.B's "on first start with no domains" rule.
func (s *Store) LoadDomains() ([]model.Domain, error) {
	s.domainsMu.Lock()
	defer s.domainsMu.Unlock()

	path := s.domainsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		seed := SeedDomains()
		if err := util.AtomicWriteJSON(path, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}

	var domains []model.Domain
	if err := readJSONOrDefault(path, &domains); err != nil {
		return nil, err
	}
	if domains == nil {
		domains = []model.Domain{}
	}
	return domains, nil
}

// SaveDomains overwrites domains.json atomically.
func (s *Store) SaveDomains(domains []model.Domain) error {
	s.domainsMu.Lock()
	defer s.domainsMu.Unlock()

	if domains == nil {
		domains = []model.Domain{}
	}
	return util.AtomicWriteJSON(s.domainsPath(), domains)
}

// readJSONOrDefault decodes path into v, leaving v untouched if the file
// does not exist (the caller's zero/default value is the result).
func readJSONOrDefault(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}
