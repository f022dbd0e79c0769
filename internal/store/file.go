package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// FileStore keeps one pretty-printed JSON array per authority: <dir>/<AUTHORITY>.json
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "rules"
	}
	return &FileStore{dir: dir}
}

// Path returns the file that holds authority's rule set
func (s *FileStore) Path(authority string) string {
	return filepath.Join(s.dir, authority+".json")
}

// Load reads a rule set; rules that do not decode are kept as invalid entries
func (s *FileStore) Load(ctx context.Context, authority string) ([]model.Rule, error) {
	if err := checkAuthority(authority); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(authority))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, authority)
	}
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}

	rules, err := model.ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", authority, err)
	}
	return rules, nil
}

// Save writes the rule set atomically (temp file + rename)
func (s *FileStore) Save(ctx context.Context, authority string, rules []model.Rule) error {
	if err := checkAuthority(authority); err != nil {
		return err
	}
	if rules == nil {
		rules = []model.Rule{}
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rule set: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+authority+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write rule set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close rule set: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path(authority)); err != nil {
		return fmt.Errorf("rename rule set: %w", err)
	}
	return nil
}

// List returns every rule set in the directory, sorted by authority
func (s *FileStore) List(ctx context.Context) ([]RuleSetInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []RuleSetInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules directory: %w", err)
	}

	infos := []RuleSetInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			// not a rule set
			continue
		}

		infos = append(infos, RuleSetInfo{
			Authority: strings.TrimSuffix(name, ".json"),
			Count:     len(raws),
			UpdatedAt: fi.ModTime().UTC(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Authority < infos[j].Authority })
	return infos, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
