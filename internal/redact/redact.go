// Package redact removes identity-bearing spans from text before anything
// downstream may embed, encrypt, or log it.
//
// Detected spans are replaced with category placeholder tokens such as <PER>,
// <ORG>, <LOC>. The scrubbed form is the only textual form that leaves this
// package.
package redact

import (
	"context"
	"regexp"
	"sort"
)

// Scrubber detects identity-bearing content and replaces it with placeholders.
type Scrubber interface {
	// Scrub returns text with detected spans replaced by category
	// placeholders. Empty input yields empty output. Scrubbing already
	// scrubbed text changes nothing further.
	Scrub(ctx context.Context, text string) (string, error)
}

// Rule describes one detection pattern.
//
// Pattern must contain exactly one capture group; only the captured span is
// redacted, so rules can anchor on surrounding context ("works at X") without
// consuming it.
type Rule struct {
	// ID identifies the rule for logging.
	ID string

	// Category becomes the placeholder token: <CATEGORY>.
	Category string

	// Pattern is the regular expression with one capture group.
	Pattern string
}

// span tracks a region to redact.
type span struct {
	start, end int
	category   string
}

// PatternScrubber is the built-in Scrubber using an ordered rule table.
//
// Earlier rules win when spans overlap, so context-specific rules should
// precede generic ones.
type PatternScrubber struct {
	rules []compiledRule
}

type compiledRule struct {
	id       string
	category string
	pattern  *regexp.Regexp
}

// NewPatternScrubber compiles the given rules. If rules is nil, DefaultRules
// is used.
func NewPatternScrubber(rules []Rule) (*PatternScrubber, error) {
	if rules == nil {
		rules = DefaultRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{id: r.ID, category: r.Category, pattern: re})
	}
	return &PatternScrubber{rules: compiled}, nil
}

// Scrub implements Scrubber.
func (s *PatternScrubber) Scrub(_ context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	var spans []span
	for _, rule := range s.rules {
		matches := rule.pattern.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			// Indices 2,3 are the first capture group.
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			spans = append(spans, span{start: m[2], end: m[3], category: rule.category})
		}
	}

	if len(spans) == 0 {
		return text, nil
	}

	spans = resolveOverlaps(spans)

	// Replace in reverse order so earlier indices stay valid.
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	scrubbed := text
	for _, sp := range spans {
		if sp.start >= 0 && sp.end <= len(scrubbed) && sp.start < sp.end {
			scrubbed = scrubbed[:sp.start] + "<" + sp.category + ">" + scrubbed[sp.end:]
		}
	}
	return scrubbed, nil
}

// resolveOverlaps keeps the first-declared span when two overlap. Rule order
// in the table is priority order, and spans arrive in that order.
func resolveOverlaps(spans []span) []span {
	kept := make([]span, 0, len(spans))
	for _, candidate := range spans {
		overlaps := false
		for _, k := range kept {
			if candidate.start < k.end && k.start < candidate.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}
	return kept
}

var _ Scrubber = (*PatternScrubber)(nil)
