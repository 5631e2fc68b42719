// Package complexity implements the query complexity analyzer (C2):
// rejecting queries whose cost exceeds configured thresholds before they
// ever reach the storage backend. Analyze is a pure function — no package
// state is mutated — matching spec.md §5's requirement that C1/C2/C3/C5
// carry no cross-call state.
package complexity

import (
	"strings"

	"github.com/codequery/engine/internal/docmodel"
)

// Config holds the tunable thresholds, all with defaults matching spec.md §4.2.
type Config struct {
	MaxWildcards     int
	MaxTerms         int
	MaxNear          int
	MaxNestingDepth   int
	MaxCost          float64
	WeightTerms      float64
	WeightWildcards  float64
	WeightNear       float64
	NestingCostBase  float64
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxWildcards:    3,
		MaxTerms:        20,
		MaxNear:         3,
		MaxNestingDepth: 5,
		MaxCost:         100,
		WeightTerms:     1,
		WeightWildcards: 3,
		WeightNear:      5,
		NestingCostBase: 4,
	}
}

// Decision is the outcome of analyzing a query's complexity.
type Decision struct {
	Terms           int
	Operators       int
	Wildcards       int
	NearClauses     int
	MaxNestingDepth int
	Cost            float64
	Level           docmodel.ComplexityLevel
	Suggestions     []string
}

var operatorTokens = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {},
}

// Analyze computes the Decision for query under cfg. It never mutates
// package state and never panics; TOO_COMPLEX is a value in the returned
// Decision, not an error — the caller (C5) decides what to do with it.
func Analyze(query string, cfg Config) Decision {
	wildcards := countWildcards(query)
	nearClauses := countNear(query)
	depth := maxNestingDepth(query)

	fields := strings.Fields(query)
	terms := 0
	operators := 0
	for _, f := range fields {
		upper := strings.ToUpper(f)
		if _, ok := operatorTokens[upper]; ok {
			operators++
			continue
		}
		terms++
	}

	cost := cfg.WeightTerms*float64(terms) +
		cfg.WeightWildcards*float64(wildcards) +
		cfg.WeightNear*float64(nearClauses) +
		pow(cfg.NestingCostBase, depth)

	level := levelFor(cost, cfg.MaxCost)

	d := Decision{
		Terms:           terms,
		Operators:       operators,
		Wildcards:       wildcards,
		NearClauses:     nearClauses,
		MaxNestingDepth: depth,
		Cost:            cost,
		Level:           level,
	}
	if level == docmodel.LevelTooComplex {
		d.Suggestions = suggestionsFor(d, cfg)
	}
	return d
}

func levelFor(cost, maxCost float64) docmodel.ComplexityLevel {
	switch {
	case cost < 20:
		return docmodel.LevelSimple
	case cost < 50:
		return docmodel.LevelModerate
	case cost <= maxCost:
		return docmodel.LevelComplex
	default:
		return docmodel.LevelTooComplex
	}
}

func suggestionsFor(d Decision, cfg Config) []string {
	var out []string
	if d.Wildcards > cfg.MaxWildcards {
		out = append(out, "reduce wildcards")
	}
	if d.Terms > cfg.MaxTerms {
		out = append(out, "reduce the number of terms")
	}
	if d.NearClauses > cfg.MaxNear {
		out = append(out, "reduce NEAR clauses")
	}
	if d.MaxNestingDepth > cfg.MaxNestingDepth {
		out = append(out, "reduce parenthesis nesting depth")
	}
	if len(out) == 0 {
		out = append(out, "simplify the query")
	}
	return out
}

// countWildcards counts '*' occurrences not preceded by an odd number of
// backslashes (escape-aware).
func countWildcards(query string) int {
	n := 0
	backslashes := 0
	for _, r := range query {
		if r == '\\' {
			backslashes++
			continue
		}
		if r == '*' {
			if backslashes%2 == 0 {
				n++
			}
		}
		backslashes = 0
	}
	return n
}

func countNear(query string) int {
	lower := strings.ToLower(query)
	n := 0
	idx := 0
	for {
		pos := strings.Index(lower[idx:], "near(")
		if pos < 0 {
			break
		}
		n++
		idx += pos + len("near(")
	}
	return n
}

func maxNestingDepth(query string) int {
	depth, max := 0, 0
	for _, r := range query {
		switch r {
		case '(':
			depth++
			if depth > max {
				max = depth
			}
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

func pow(base float64, exp int) float64 {
	if exp <= 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
