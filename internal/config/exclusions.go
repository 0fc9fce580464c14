package config

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ExclusionMatcher matches entities against the configured exclusion
// patterns. Compile once, use from any goroutine.
type ExclusionMatcher struct {
	filePatterns     []string
	files            []string
	classPatterns    []*regexp.Regexp
	functionPatterns []*regexp.Regexp
}

// NewExclusionMatcher creates a new exclusion matcher from config.
// Invalid regular expressions are skipped.
func NewExclusionMatcher(cfg ExclusionsConfig) *ExclusionMatcher {
	m := &ExclusionMatcher{
		filePatterns: cfg.FilePatterns,
		files:        cfg.Files,
	}

	for _, p := range cfg.ClassPatterns {
		if re, err := regexp.Compile(p); err == nil {
			m.classPatterns = append(m.classPatterns, re)
		}
	}

	for _, p := range cfg.FunctionPatterns {
		if re, err := regexp.Compile(p); err == nil {
			m.functionPatterns = append(m.functionPatterns, re)
		}
	}

	return m
}

// Matches reports whether the entity should be excluded from reporting.
// Empty className/funcName skip the respective checks.
func (m *ExclusionMatcher) Matches(filePath, className, funcName string) bool {
	for _, f := range m.files {
		if filePath == f {
			return true
		}
	}

	for _, pattern := range m.filePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matchDoubleGlob(pattern, filePath) {
			return true
		}
	}

	if className != "" {
		for _, re := range m.classPatterns {
			if re.MatchString(className) {
				return true
			}
		}
	}

	if funcName != "" {
		for _, re := range m.functionPatterns {
			if re.MatchString(funcName) {
				return true
			}
		}
	}

	return false
}

// matchDoubleGlob handles ** patterns in globs.
func matchDoubleGlob(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		return false
	}
	parts := strings.Split(pattern, "**")
	if len(parts) != 2 {
		return false
	}
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix == "" && suffix != "" {
		return strings.HasSuffix(path, suffix) || strings.Contains(path, "/"+suffix)
	}
	if suffix == "" && prefix != "" {
		return strings.HasPrefix(path, prefix) || strings.Contains(path, prefix+"/")
	}
	if prefix != "" && suffix != "" {
		return strings.Contains(path, prefix) && strings.Contains(path, suffix)
	}
	return false
}
