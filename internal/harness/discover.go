package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DuplicateScenarioError is returned when two files define the same
// scenario name. Golden files are keyed by name, so names must be unique.
type DuplicateScenarioError struct {
	Name   string
	First  string
	Second string
}

// Error implements the error interface.
func (e *DuplicateScenarioError) Error() string {
	return fmt.Sprintf("scenario %q defined in both %s and %s", e.Name, e.First, e.Second)
}

// Discover returns the scenario files under dir, sorted. Files ending in
// .yaml or .yml are scenarios unless their name starts with "env", which
// marks an environment snapshot.
func Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if strings.HasPrefix(d.Name(), "env") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadAll loads every scenario under dir.
func LoadAll(dir string) ([]*Scenario, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if first, dup := seen[s.Name]; dup {
			return nil, &DuplicateScenarioError{Name: s.Name, First: first, Second: path}
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
