package transfer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches export documents written by the extract side.
var DefaultInclude = []string{"**/*.json"}

// DefaultExclude skips dependency and tool directories.
var DefaultExclude = []string{"**/node_modules/**", "**/.git/**", "**/.stylesync/**"}

// DiscoverExports walks rootDir and returns the sorted absolute paths of
// files matching include and not matching exclude. Empty include means
// DefaultInclude.
func DiscoverExports(rootDir string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range exclude {
			if m, _ := doublestar.PathMatch(pattern, rel); m {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			// Directory patterns ending in /** also match the directory itself.
			if d.IsDir() {
				if m, _ := doublestar.PathMatch(pattern, rel+"/x"); m {
					return filepath.SkipDir
				}
			}
		}
		if d.IsDir() {
			return nil
		}

		for _, pattern := range include {
			if m, _ := doublestar.PathMatch(pattern, rel); m {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
