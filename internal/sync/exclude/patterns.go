package exclude

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dl-alexandre/drivemirror/internal/logging"
)

// Matcher decides which local paths the scanner skips.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

func DefaultPatterns() []string {
	return []string{
		".git/",
		".DS_Store",
	}
}

// New compiles the default patterns plus patterns. Each pattern is expanded
// with Expand before compiling.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range append(append([]string{}, DefaultPatterns()...), patterns...) {
		for _, expanded := range Expand(p) {
			g, err := glob.Compile(expanded, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
			}
			m.patterns = append(m.patterns, expanded)
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

// Expand turns one ignore line into the glob patterns it stands for.
//
// A leading "/" is dropped, so anchoring is not honored. A trailing "/" or a
// bare name without wildcards is a directory and expands to p, p/**, **/p and
// **/p/**. Any other pattern matches itself and **/p.
func Expand(pattern string) []string {
	p := strings.TrimSpace(pattern)
	if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "!") {
		return nil
	}
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, "./")

	isDir := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return nil
	}

	if isDir || !strings.ContainsAny(p, "*?[{") {
		return []string{p, p + "/**", "**/" + p, "**/" + p + "/**"}
	}
	if strings.HasPrefix(p, "**/") {
		return []string{p, strings.TrimPrefix(p, "**/")}
	}
	return []string{p, "**/" + p}
}

// FromGitignore translates a root .gitignore into ignore patterns. The
// translation is deliberately partial: negations are dropped (logged at
// debug), anchoring is lost and nested .gitignore files are never read.
func FromGitignore(data []byte, logger logging.Logger) []string {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	var patterns []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "!"):
			logger.Debug("Dropping negated .gitignore pattern", logging.F("pattern", line))
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// IsExcluded reports whether relPath (forward slashes, relative to the scan
// root) matches any pattern.
func (m *Matcher) IsExcluded(relPath string) bool {
	if m == nil {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	for _, g := range m.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// Patterns returns the expanded glob patterns in compile order.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
