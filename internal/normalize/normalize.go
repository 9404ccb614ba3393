// Package normalize strips volatile substrings from window titles so that
// cosmetic churn (clocks, counters, playback state) does not split a segment.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// maxPasses bounds the fixed-point loop for user-supplied rules that never settle.
const maxPasses = 16

// Rule is one noise pattern. Matches of Pattern are replaced with Replace.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace,omitempty"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// DefaultRules returns the built-in noise patterns, in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "clock", Pattern: `(?i)\d{1,2}:\d{2}(:\d{2})?(\s*(AM|PM))?`},
		{Name: "bracket-counter", Pattern: `[(\[]\d+[)\]]`},
		{Name: "integer", Pattern: `\b\d+\b`},
		{Name: "playback-suffix", Pattern: `(?i)\s*[-–|]\s*(Audio playing|Playing|Paused).*$`},
		{Name: "chess-glyphs", Pattern: `[♔♕♖♗♘♙♚♛♜♝♞♟]`},
		{Name: "game-state", Pattern: `(?i)\b(your turn|their turn|white|black|check|checkmate)\b`},
		{Name: "audio-glyphs", Pattern: `🔊|🔇|🔈|🔉|♪|♫|🎵|🎶`},
	}
}

// Normalizer applies an ordered rule list followed by whitespace collapsing.
// It is safe for concurrent use.
type Normalizer struct {
	rules []compiledRule
}

// New compiles the given rules. With no rules it returns a normalizer
// that only collapses whitespace.
func New(rules ...Rule) (*Normalizer, error) {
	n := &Normalizer{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): empty pattern", i, r.Name)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		n.rules = append(n.rules, compiledRule{Rule: r, re: re})
	}
	return n, nil
}

// NewDefault returns a normalizer with DefaultRules.
func NewDefault() *Normalizer {
	n, err := New(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return n
}

// Rules returns the rules in application order.
func (n *Normalizer) Rules() []Rule {
	out := make([]Rule, len(n.rules))
	for i, r := range n.rules {
		out[i] = r.Rule
	}
	return out
}

// Normalize returns the canonical form of title.
// Normalize(Normalize(s)) == Normalize(s) for any rule set that settles
// within maxPasses; the default rules only delete text and always do.
func (n *Normalizer) Normalize(title string) string {
	cur := n.pass(title)
	for i := 1; i < maxPasses; i++ {
		next := n.pass(cur)
		if next == cur {
			return cur
		}
		cur = next
	}
	return cur
}

func (n *Normalizer) pass(s string) string {
	for _, r := range n.rules {
		s = r.re.ReplaceAllString(s, r.Replace)
	}
	return strings.Join(strings.Fields(s), " ")
}
