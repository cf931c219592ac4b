package logging

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// minLiteralLen keeps short values such as "1" or "true" from being
// registered as secrets.
const minLiteralLen = 8

const defaultPlaceholder = "[REDACTED]"

// rule replaces matches of re. keep names a capture group that survives
// the redaction, e.g. the scheme and user of a credentialed URL.
type rule struct {
	re   *regexp.Regexp
	keep string
}

// builtinRules cover credentials that show up in phase output: provider
// API keys, forge tokens, cloud keys and credentials embedded in git
// remote URLs.
var builtinRules = []rule{
	{re: regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{40,}`)},
	{re: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{re: regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`)},
	{re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},
	{re: regexp.MustCompile(`github_pat_[A-Za-z0-9_]{40,}`)},
	{re: regexp.MustCompile(`glpat-[A-Za-z0-9_-]{20}`)},
	{re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{re: regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key["'\s:=]+[A-Za-z0-9/+=]{40}`)},
	{re: regexp.MustCompile(`xox[baprs]-[0-9a-zA-Z-]{10,}`)},
	{re: regexp.MustCompile(`(?P<keep>[a-z][a-z0-9+.-]*://[^/\s:@]+:)[^@\s/]+@`), keep: "keep"},
	{re: regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`)},
	{re: regexp.MustCompile(`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`)},
	{re: regexp.MustCompile(`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`)},
	{re: regexp.MustCompile(`(?i)password["'\s:=]+[^\s"']{8,}`)},
	{re: regexp.MustCompile(`(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`)},
}

// Sanitizer redacts credentials from text before it reaches logs, the API
// or the terminal. It is safe for concurrent use.
type Sanitizer struct {
	mu          sync.RWMutex
	rules       []rule
	literals    []string
	placeholder string
}

// NewSanitizer creates a sanitizer with the built-in rules.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rules:       slices.Clone(builtinRules),
		placeholder: defaultPlaceholder,
	}
}

// Sanitize returns s with every registered literal and rule match
// replaced by the placeholder.
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := input
	for _, lit := range s.literals {
		out = strings.ReplaceAll(out, lit, s.placeholder)
	}
	for _, r := range s.rules {
		repl := s.placeholder
		if r.keep != "" {
			// The URL rule swallows the "@"; put it back after the placeholder.
			repl = "${" + r.keep + "}" + s.placeholder + "@"
		}
		out = r.re.ReplaceAllString(out, repl)
	}
	return out
}

// SanitizeMap returns a copy of m with every string inside it sanitized,
// descending into nested maps and slices. Phase results have this shape.
func (s *Sanitizer) SanitizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = s.sanitizeAny(v)
	}
	return out
}

func (s *Sanitizer) sanitizeAny(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return s.Sanitize(x)
	case map[string]interface{}:
		return s.SanitizeMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = s.sanitizeAny(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = s.Sanitize(item)
		}
		return out
	}
	return v
}

// AddPattern registers an extra regular expression to redact.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{re: re})
	return nil
}

// AddLiteral registers an exact secret value, e.g. a credential passed to a
// phase command through its environment. Values shorter than eight
// characters are ignored. Longer literals are replaced first so a secret
// that contains another one is redacted whole.
func (s *Sanitizer) AddLiteral(value string) {
	if len(value) < minLiteralLen {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.literals, value) {
		return
	}
	s.literals = append(s.literals, value)
	slices.SortStableFunc(s.literals, func(a, b string) int { return len(b) - len(a) })
}

// SetPlaceholder changes the replacement text.
func (s *Sanitizer) SetPlaceholder(placeholder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholder = placeholder
}
