// Package redact masks personally identifiable information in snippets and
// synthesized answers before they leave the retrieval pipeline.
package redact

import (
	"fmt"
	"regexp"
)

// Match is one detected PII occurrence.
type Match struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
}

// Pattern is a named detection rule. The name becomes the placeholder type,
// as in [REDACTED:email].
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// placeholderRe matches placeholders the filter itself emits.
var placeholderRe = regexp.MustCompile(`\[REDACTED:[a-z0-9_]+\]`)

// Filter replaces PII with typed placeholders. Masking is idempotent: a
// placeholder emitted by one pass is never rewritten by a later pass, so the
// filter can run both at index time and at answer time.
type Filter struct {
	patterns []Pattern
}

// DefaultPatterns returns the built-in detection rules.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "email", Regex: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
		// Korean mobile format with optional separators, e.g. 010-1234-5678.
		{Name: "phone", Regex: regexp.MustCompile(`01[016789][-.\s]?\d{3,4}[-.\s]?\d{4}`)},
		// Resident registration number: 6 digits, separator, 7 digits.
		{Name: "national_id", Regex: regexp.MustCompile(`\d{6}[-\s]?[1-4]\d{6}`)},
		{Name: "ipv4", Regex: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
		{Name: "date", Regex: regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`)},
	}
}

// New builds a filter from the given patterns, or the defaults when none are
// given. A pattern whose regex can match an emitted placeholder would break
// idempotence and is rejected.
func New(patterns ...Pattern) (*Filter, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		if p.Name == "" || p.Regex == nil {
			return nil, fmt.Errorf("redact: pattern must have a name and a regex")
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("redact: duplicate pattern name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Regex.MatchString("[REDACTED:" + p.Name + "]") {
			return nil, fmt.Errorf("redact: pattern %q matches its own placeholder", p.Name)
		}
	}

	return &Filter{patterns: patterns}, nil
}

// MustNew is New that panics on error, for static pattern sets.
func MustNew(patterns ...Pattern) *Filter {
	f, err := New(patterns...)
	if err != nil {
		panic(err)
	}
	return f
}

// Mask replaces every PII occurrence with its typed placeholder. Regions
// already holding a placeholder are left untouched.
func (f *Filter) Mask(content string) string {
	if content == "" {
		return content
	}

	// Protect existing placeholders so later patterns (e.g. a broad date
	// regex) cannot chew into them.
	protected := placeholderRe.FindAllStringIndex(content, -1)

	var repls []replacement
	for _, p := range f.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(content, -1) {
			if overlaps(loc[0], loc[1], protected) || overlapsAny(loc[0], loc[1], repls) {
				continue
			}
			repls = append(repls, replacement{start: loc[0], end: loc[1], name: p.Name})
		}
	}
	if len(repls) == 0 {
		return content
	}

	// Rebuild right-to-left so earlier offsets stay valid.
	for i := 0; i < len(repls); i++ {
		for j := i + 1; j < len(repls); j++ {
			if repls[j].start > repls[i].start {
				repls[i], repls[j] = repls[j], repls[i]
			}
		}
	}
	out := content
	for _, r := range repls {
		out = out[:r.start] + "[REDACTED:" + r.name + "]" + out[r.end:]
	}
	return out
}

// Detect reports every PII occurrence without modifying the content.
// Placeholder regions are not reported.
func (f *Filter) Detect(content string) []Match {
	protected := placeholderRe.FindAllStringIndex(content, -1)

	var matches []Match
	for _, p := range f.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(content, -1) {
			if overlaps(loc[0], loc[1], protected) {
				continue
			}
			matches = append(matches, Match{
				Type:     p.Name,
				Value:    content[loc[0]:loc[1]],
				Position: loc[0],
				Length:   loc[1] - loc[0],
			})
		}
	}
	return matches
}

// MaskAll masks a slice of strings in place order, returning a new slice.
func (f *Filter) MaskAll(contents []string) []string {
	out := make([]string, len(contents))
	for i, c := range contents {
		out[i] = f.Mask(c)
	}
	return out
}

type replacement struct {
	start int
	end   int
	name  string
}

func overlaps(start, end int, regions [][]int) bool {
	for _, r := range regions {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}

func overlapsAny(start, end int, repls []replacement) bool {
	for _, r := range repls {
		if start < r.end && end > r.start {
			return true
		}
	}
	return false
}
