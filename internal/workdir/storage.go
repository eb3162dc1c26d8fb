package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tmt/pkg/logging"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Load when the requested entity has no file.
var ErrNotFound = errors.New("not found")

// Storage provides YAML persistence for entities stored below a single root
// directory. Entities are addressed by section (a sub-directory, may be empty)
// and name (the file name without extension).
type Storage struct {
	mu   sync.RWMutex
	root string
}

// NewStorage creates a Storage rooted at the given directory. The directory
// is created lazily on the first Save.
func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

// Root returns the directory the storage writes into.
func (s *Storage) Root() string {
	return s.root
}

// Path returns the file path an entity is stored at.
func (s *Storage) Path(section, name string) string {
	return filepath.Join(s.root, section, SanitizeName(name)+".yaml")
}

// Save encodes value as YAML and writes it to section/name.yaml.
func (s *Storage) Save(section, name string, value interface{}) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", section, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targetDir := filepath.Join(s.root, section)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filePath := s.Path(section, name)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to replace file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", section, name, filePath)
	return nil
}

// Load decodes section/name.yaml into out. It returns ErrNotFound (wrapped)
// when the file does not exist.
func (s *Storage) Load(section, name string, out interface{}) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.Path(section, name)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("entity %s/%s: %w", section, name, ErrNotFound)
		}
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return nil
}

// Delete removes section/name.yaml. Missing files are not an error.
func (s *Storage) Delete(section, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.Path(section, name)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// List returns the names of all entities stored in a section.
func (s *Storage) List(section string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirPath := filepath.Join(s.root, section)
	yamlFiles, err := filepath.Glob(filepath.Join(dirPath, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yaml files: %w", err)
	}

	names := make([]string, 0, len(yamlFiles))
	for _, filePath := range yamlFiles {
		basename := filepath.Base(filePath)
		names = append(names, strings.TrimSuffix(basename, filepath.Ext(basename)))
	}
	return names, nil
}

// SanitizeName makes a plan or phase name safe to use as a single path
// component. "/plans/smoke test" becomes "plans-smoke-test".
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	sanitized := b.String()
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-.")

	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
