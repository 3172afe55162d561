package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sensitiveNamePatterns deny access to files that commonly hold secrets,
// regardless of where they sit inside an allowed root.
var sensitiveNamePatterns = []string{
	".env",
	"credentials",
	"secrets",
	"secret",
	".ssh",
	"id_rsa",
	"id_ed25519",
	"token",
	".key",
	".pem",
	"private",
	"password",
	".netrc",
	".npmrc",
	".pypirc",
}

// FileAccessResult is the outcome of a path validation.
type FileAccessResult struct {
	Allowed bool
	Reason  string
}

// CheckFileAccess validates that an LLM-requested filesystem path resolves
// inside one of the known repository roots and does not name a sensitive
// file. Symlinks and ".." segments are normalized before the containment
// check, so a path cannot escape a root by indirection.
func CheckFileAccess(path string, allowedRoots []string) FileAccessResult {
	if path == "" {
		return FileAccessResult{Reason: "empty path"}
	}
	if len(allowedRoots) == 0 {
		return FileAccessResult{Reason: "no repository roots are configured for this interaction"}
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return FileAccessResult{Reason: fmt.Sprintf("path resolution failed: %v", err)}
	}

	inside := false
	for _, root := range allowedRoots {
		resolvedRoot, err := resolvePath(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(resolvedRoot, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			inside = true
			break
		}
	}
	if !inside {
		return FileAccessResult{Reason: fmt.Sprintf("path %s resolves outside the repository", path)}
	}

	lower := strings.ToLower(resolved)
	for _, pattern := range sensitiveNamePatterns {
		if strings.Contains(lower, pattern) {
			return FileAccessResult{Reason: fmt.Sprintf("path matches sensitive pattern %q", pattern)}
		}
	}

	return FileAccessResult{Allowed: true, Reason: "path inside repository"}
}

// resolvePath makes a path absolute, follows symlinks where possible and
// cleans ".." segments. A nonexistent leaf is resolved against its
// nearest existing ancestor.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Leaf may not exist yet: resolve the parent and re-join
	dir, base := filepath.Split(abs)
	resolvedDir, err := filepath.EvalSymlinks(filepath.Clean(dir))
	if err != nil {
		return filepath.Clean(abs), nil
	}
	return filepath.Join(resolvedDir, base), nil
}
