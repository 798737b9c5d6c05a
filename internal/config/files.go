package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var templateExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// ResolveTemplateFiles expands the TemplateFiles patterns against designDir
// and returns the matching template library files, sorted and deduplicated.
// A plain path that does not exist is returned as is so that loading it
// reports the error.
func (c *Config) ResolveTemplateFiles(designDir string) ([]string, error) {
	fileSet := make(map[string]bool)

	for _, pattern := range c.TemplateFiles {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(designDir, pattern)
		}

		if !hasMeta(pattern) {
			fileSet[filepath.Clean(pattern)] = true
			continue
		}

		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if templateExts[strings.ToLower(filepath.Ext(match))] {
				fileSet[match] = true
			}
		}
	}

	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	parts := strings.SplitN(pattern, "**", 2)
	baseDir := filepath.Clean(parts[0])
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	var results []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == baseDir {
				return fs.SkipAll
			}
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(rel, suffix) {
			results = append(results, path)
		}
		return nil
	})
	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	// no directory component: match the file name at any depth
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}

	segments := strings.Count(pattern, string(filepath.Separator)) + 1
	parts := strings.Split(path, string(filepath.Separator))
	if len(parts) < segments {
		return false
	}
	tail := filepath.Join(parts[len(parts)-segments:]...)
	matched, _ := filepath.Match(pattern, tail)
	return matched
}
