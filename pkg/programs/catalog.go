package programs

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/antibyte/retrocalc/pkg/logger"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// CatalogEntry is one program shipped with the server.
type CatalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Source      string `yaml:"source"`
}

type catalogFile struct {
	Programs []CatalogEntry `yaml:"programs"`
}

// ParseCatalog decodes a catalog document. Unknown fields, unnamed entries
// and duplicate names are rejected.
func ParseCatalog(r io.Reader) ([]CatalogEntry, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file catalogFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Programs))
	for i, entry := range file.Programs {
		name, err := NormalizeName(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("catalog entry %d: duplicate program %s", i+1, name)
		}
		seen[name] = true
		file.Programs[i].Name = name
	}
	return file.Programs, nil
}

// LoadCatalog returns the catalog at path, or the built-in catalog when
// path is empty.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	if path == "" {
		return ParseCatalog(bytes.NewReader(builtinCatalog))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()
	return ParseCatalog(file)
}

// Seed saves every catalog entry the store does not have yet. Entries that
// fail to compile are logged and skipped. It returns the number of programs
// added.
func (s *Store) Seed(ctx context.Context, entries []CatalogEntry) (int, error) {
	added := 0
	for _, entry := range entries {
		_, err := s.Get(ctx, entry.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return added, err
		}

		_, err = s.Save(ctx, Program{Name: entry.Name, Description: entry.Description, Source: entry.Source})
		if err != nil {
			logger.Warn(logger.AreaPrograms, "catalog program %s skipped: %v", entry.Name, err)
			continue
		}
		added++
	}
	if added > 0 {
		logger.Info(logger.AreaPrograms, "seeded %d catalog programs", added)
	}
	return added, nil
}
