package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"outline/internal/config"
	"outline/internal/parser"
)

var excludedDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"vendor":        true,
	"dist":          true,
	"build":         true,
	".next":         true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	".tox":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
}

// GetAllSourceFiles walks rootPath and returns every file with a supported
// extension, skipping well-known heavy directories and anything matched by
// the root .gitignore. Results are sorted.
func GetAllSourceFiles(rootPath string) ([]string, error) {
	var files []string
	ignore := newIgnoreMatcher(loadGitIgnorePatterns(rootPath))
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Compute path relative to root for .gitignore-style matching.
		relPath, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			if excludedDirs[d.Name()] || ignore.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore.Match(relPath, false) {
			return nil
		}
		if parser.IsSupportedFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// CosineSim returns the cosine similarity of a and b, or 0 when their
// lengths differ or either is a zero vector.
func CosineSim(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func NormalizeQuery(query string) string {
	return strings.TrimSpace(query)
}

// NormalizeProjectRoot returns the absolute, cleaned, symlink-resolved form
// of root.
func NormalizeProjectRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// ComputeProjectID derives a stable identifier for a project from its
// normalized root path.
func ComputeProjectID(root string) (string, error) {
	normalized, err := NormalizeProjectRoot(root)
	if err != nil {
		return "", err
	}
	return HashContent(filepath.ToSlash(normalized))[:16], nil
}

// UserStateDir returns ~/.outline, creating it if needed.
func UserStateDir() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// loadGitIgnorePatterns reads the root-level .gitignore (if present) and
// returns a list of non-empty, non-comment patterns.
func loadGitIgnorePatterns(rootPath string) []string {
	gitIgnorePath := filepath.Join(rootPath, ".gitignore")
	data, err := os.ReadFile(gitIgnorePath)
	if err != nil {
		return nil
	}

	lines := strings.Split(string(data), "\n")
	var patterns []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

type ignoreRule struct {
	dirOnly bool
	globs   []glob.Glob
}

// ignoreMatcher applies the subset of .gitignore semantics needed to skip
// build output and caches: root-anchored and floating globs, and
// directory-only patterns. Negations are not supported and are dropped.
type ignoreMatcher struct {
	rules []ignoreRule
}

func newIgnoreMatcher(patterns []string) *ignoreMatcher {
	m := &ignoreMatcher{}
	for _, raw := range patterns {
		p := filepath.ToSlash(strings.TrimSpace(raw))
		if p == "" || strings.HasPrefix(p, "!") {
			continue
		}

		var rule ignoreRule
		if strings.HasSuffix(p, "/") {
			rule.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}

		anchored := strings.HasPrefix(p, "/") || strings.Contains(p, "/")
		p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
		if p == "" {
			continue
		}

		candidates := []string{p}
		if !anchored {
			candidates = append(candidates, "**/"+p)
		}
		for _, c := range candidates {
			g, err := glob.Compile(c, '/')
			if err != nil {
				continue
			}
			rule.globs = append(rule.globs, g)
		}
		if len(rule.globs) > 0 {
			m.rules = append(m.rules, rule)
		}
	}
	return m
}

// Match reports whether relPath (slash-separated, relative to the root)
// is ignored.
func (m *ignoreMatcher) Match(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(strings.TrimSpace(relPath), "./")
	if relPath == "" || relPath == "." {
		return false
	}

	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		for _, g := range r.globs {
			if g.Match(relPath) {
				return true
			}
		}
	}
	return false
}
