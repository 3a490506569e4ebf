package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists one JSON file per group so cached element sets and their
// refresh timestamps survive a restart.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(group string) string {
	return filepath.Join(s.dir, "group_"+group+".json")
}

// Save serializes the entry to its per-group file, replacing any previous
// contents.
func (s *Store) Save(entry *GroupEntry) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding group %q: %w", entry.Group, err)
	}

	if err := os.WriteFile(s.path(entry.Group), data, 0644); err != nil {
		return fmt.Errorf("writing group %q: %w", entry.Group, err)
	}
	return nil
}

// LoadAll reads every persisted group file from the store directory,
// restoring entries with their original refresh timestamps. A missing
// directory yields no entries and no error.
func (s *Store) LoadAll() ([]*GroupEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing catalog dir: %w", err)
	}

	var entries []*GroupEntry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, "group_") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return entries, fmt.Errorf("reading %s: %w", name, err)
		}

		var entry GroupEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return entries, fmt.Errorf("decoding %s: %w", name, err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
