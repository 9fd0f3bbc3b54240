// Package workspace resolves the default working directory for new
// terminal sessions from configured root patterns.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Resolver expands workspace root patterns. Patterns use doublestar syntax
// ("~/src/*", "/srv/**/repo") and a leading "~" expands to the user's home.
type Resolver struct {
	logger *zap.Logger
	home   func() (string, error)
}

// NewResolver creates a resolver
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger, home: os.UserHomeDir}
}

// DefaultDir returns the first existing directory matched by patterns, in
// pattern order. Matches of a single pattern are taken in lexical order.
func (r *Resolver) DefaultDir(patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if dirs := r.match(pattern); len(dirs) > 0 {
			return dirs[0], true
		}
	}
	return "", false
}

// Roots returns every existing directory matched by patterns, without
// duplicates.
func (r *Resolver) Roots(patterns []string) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, pattern := range patterns {
		for _, dir := range r.match(pattern) {
			if !seen[dir] {
				seen[dir] = true
				roots = append(roots, dir)
			}
		}
	}
	return roots
}

func (r *Resolver) match(pattern string) []string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	expanded, err := r.expandHome(pattern)
	if err != nil {
		r.logger.Debug("Cannot expand workspace root", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}

	matches, err := doublestar.FilepathGlob(expanded)
	if err != nil {
		r.logger.Warn("Invalid workspace root pattern", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	sort.Strings(matches)

	dirs := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(m); err == nil {
			m = abs
		}
		dirs = append(dirs, m)
	}
	return dirs
}

func (r *Resolver) expandHome(pattern string) (string, error) {
	if pattern != "~" && !strings.HasPrefix(pattern, "~/") && !strings.HasPrefix(pattern, `~\`) {
		return pattern, nil
	}
	home, err := r.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, pattern[1:]), nil
}
