// Package repo reads student and reference code from a checked-out
// repository directory. It is strictly read-only and bounded: the walk
// skips VCS/build/dependency directories, only reads allow-listed
// extensions, and stops once the file or total-line budget is exhausted.
package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// Bundle is a bounded snapshot of code under one root.
type Bundle struct {
	Root       string
	Files      map[string]string // relative path -> content
	TotalLines int
	Truncated  bool // A budget was hit before the walk finished
}

// FileCount returns the number of files captured.
func (b *Bundle) FileCount() int {
	return len(b.Files)
}

// Paths returns the captured relative paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Limits bounds a bundle read.
type Limits struct {
	MaxFiles      int
	MaxTotalLines int
}

// DefaultLimits returns sensible defaults.
func DefaultLimits() Limits {
	return Limits{MaxFiles: 30, MaxTotalLines: 2000}
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".pytest_cache": true,
	".mypy_cache":  true,
	"venv":         true,
	".venv":        true,
	"env":          true,
	"build":        true,
	"dist":         true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
}

// allowedExtensions is the code/text allow-list. Anything else is skipped.
var allowedExtensions = map[string]bool{
	".py":    true,
	".go":    true,
	".c":     true,
	".h":     true,
	".cpp":   true,
	".hpp":   true,
	".cc":    true,
	".java":  true,
	".js":    true,
	".ts":    true,
	".jsx":   true,
	".tsx":   true,
	".rs":    true,
	".rb":    true,
	".sh":    true,
	".sql":   true,
	".html":  true,
	".css":   true,
	".json":  true,
	".yaml":  true,
	".yml":   true,
	".toml":  true,
	".xml":   true,
	".md":    true,
	".txt":   true,
	".ipynb": true,
}

// ReadBundle walks root and returns a bounded code bundle.
// The walk is deterministic (lexical order from fs.WalkDir).
func ReadBundle(root string, limits Limits) (*Bundle, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("repository path not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path %s is not a directory", root)
	}

	if limits.MaxFiles <= 0 || limits.MaxTotalLines <= 0 {
		limits = DefaultLimits()
	}

	bundle := &Bundle{
		Root:  root,
		Files: make(map[string]string),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			logging.ContextDebug("repo walk: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if skipDirs[name] {
				return filepath.SkipDir
			}
			// Hidden directories other than the root are skipped
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if !allowedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		if bundle.FileCount() >= limits.MaxFiles || bundle.TotalLines >= limits.MaxTotalLines {
			bundle.Truncated = true
			return filepath.SkipAll
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logging.ContextDebug("repo walk: cannot read %s: %v", path, err)
			return nil
		}

		content := string(data)
		lines := strings.Count(content, "\n") + 1

		// Trim an oversized file to the remaining line budget
		if remaining := limits.MaxTotalLines - bundle.TotalLines; lines > remaining {
			parts := strings.SplitAfterN(content, "\n", remaining+1)
			content = strings.Join(parts[:remaining], "")
			lines = remaining
			bundle.Truncated = true
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		bundle.Files[filepath.ToSlash(rel)] = content
		bundle.TotalLines += lines
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository walk failed: %w", err)
	}

	logging.ContextDebug("repo bundle: %s (%d files, %d lines, truncated=%v)",
		root, bundle.FileCount(), bundle.TotalLines, bundle.Truncated)
	return bundle, nil
}

// Render formats the bundle for inclusion in a prompt, one fenced block
// per file in sorted path order. maxChars bounds the rendering; 0 means
// unbounded.
func (b *Bundle) Render(maxChars int) string {
	if b == nil || len(b.Files) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, path := range b.Paths() {
		sb.WriteString(fmt.Sprintf("### %s\n```\n%s\n```\n\n", path, b.Files[path]))
		if maxChars > 0 && sb.Len() >= maxChars {
			break
		}
	}

	out := sb.String()
	if maxChars > 0 && len(out) > maxChars {
		out = out[:maxChars] + "\n... (code truncated)\n"
	}
	if b.Truncated {
		out += "\n(note: repository snapshot was truncated at the configured budget)\n"
	}
	return out
}
