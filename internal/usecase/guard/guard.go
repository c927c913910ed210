// Package guard implements the two pattern gates around the language model:
// an input gate that rejects injection attempts before any retrieval, and an
// output gate that redacts sensitive phrases from every response.
package guard

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/courseadvisor/internal/metrics"
)

type pattern struct {
	name string
	re   *regexp.Regexp
}

// Config holds the pattern tables. Empty tables use the defaults.
type Config struct {
	InputRules  []Rule
	OutputRules []Rule
	Warning     string
	Marker      string
}

// Guard evaluates ordered pattern tables. It is immutable and safe for concurrent use.
type Guard struct {
	input   []pattern
	output  []pattern
	warning string
	marker  string
}

// New compiles the pattern tables.
func New(cfg Config) (*Guard, error) {
	if len(cfg.InputRules) == 0 {
		cfg.InputRules = DefaultInputRules
	}
	if len(cfg.OutputRules) == 0 {
		cfg.OutputRules = DefaultOutputRules
	}
	if cfg.Warning == "" {
		cfg.Warning = DefaultWarning
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}

	in, err := compile(cfg.InputRules)
	if err != nil {
		return nil, fmt.Errorf("input patterns: %w", err)
	}
	out, err := compile(cfg.OutputRules)
	if err != nil {
		return nil, fmt.Errorf("output patterns: %w", err)
	}
	return &Guard{input: in, output: out, warning: cfg.Warning, marker: cfg.Marker}, nil
}

func compile(rules []Rule) ([]pattern, error) {
	out := make([]pattern, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		out = append(out, pattern{name: name, re: re})
	}
	return out, nil
}

// Warning is the fixed text shown for rejected queries.
func (g *Guard) Warning() string { return g.warning }

// Match returns the name of the first input pattern found in text.
func (g *Guard) Match(text string) (string, bool) {
	for _, p := range g.input {
		if p.re.MatchString(text) {
			return p.name, true
		}
	}
	return "", false
}

// IsSuspicious reports whether text matches any input pattern.
func (g *Guard) IsSuspicious(text string) bool {
	_, ok := g.Match(text)
	return ok
}

// Sanitize replaces every output pattern match with the marker and returns
// the number of replacements.
func (g *Guard) Sanitize(text string) (string, int) {
	total := 0
	for _, p := range g.output {
		n := 0
		text = p.re.ReplaceAllStringFunc(text, func(string) string {
			n++
			return g.marker
		})
		if n > 0 {
			metrics.RedactionsTotal.WithLabelValues(p.name).Add(float64(n))
			total += n
		}
	}
	return text, total
}
