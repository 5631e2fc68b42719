// Package querybuild implements the code-aware query builder (C3): it
// turns a sanitized user query into a primary FTS query plus an ordered
// list of progressively looser fallback variants. The code-pattern
// detection generalizes the isCodeLike heuristic already present in the
// teacher's butler.preprocessQuery (ContainsAny(".:_-@#$&()[]{}")) into
// the fuller regex set from spec.md §4.3.
package querybuild

import (
	"regexp"
	"strings"

	"github.com/codequery/engine/internal/sanitize"
)

// Config carries the code-aware toggle; passed per call, no package state.
type Config struct {
	EnableCodeAware bool
}

var (
	reLeadingSigil = regexp.MustCompile(`^[_$]`)
	reSnakeCase    = regexp.MustCompile(`[a-z]+_[a-z]+`)
	reCamelCase    = regexp.MustCompile(`[a-z]+[A-Z]`)
	reScopeOp      = regexp.MustCompile(`::\w+`)
	reArrowOp      = regexp.MustCompile(`->\w+`)
	reTrailingSig  = regexp.MustCompile(`\w+\$`)
	reHashTag      = regexp.MustCompile(`#\w+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "is": {}, "it": {},
	"and": {}, "or": {}, "for": {}, "on": {}, "with": {}, "as": {}, "at": {}, "by": {},
}

// IsCodePattern reports whether tok matches any of spec.md §4.3's code
// pattern detectors.
func IsCodePattern(tok string) bool {
	if strings.ContainsAny(tok, "._$@->:#") {
		return true
	}
	return reLeadingSigil.MatchString(tok) ||
		reSnakeCase.MatchString(tok) ||
		reCamelCase.MatchString(tok) ||
		reScopeOp.MatchString(tok) ||
		reArrowOp.MatchString(tok) ||
		reTrailingSig.MatchString(tok) ||
		reHashTag.MatchString(tok)
}

func isFullyQuoted(q string) bool {
	t := strings.TrimSpace(q)
	if len(t) < 2 || t[0] != '"' || t[len(t)-1] != '"' {
		return false
	}
	inner := t[1 : len(t)-1]
	return !strings.Contains(inner, `"`)
}

var explicitOperatorTokens = regexp.MustCompile(`(?i)\b(AND|OR|NOT|NEAR)\b|\*|\^`)

func isAdvanced(q string) bool {
	return explicitOperatorTokens.MatchString(q)
}

// Build produces the primary FTS query for a raw user query.
func Build(query string, cfg Config) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return sanitize.EmptyMatchSentinel
	}
	if isFullyQuoted(trimmed) {
		return trimmed
	}
	if isAdvanced(trimmed) {
		return sanitize.Sanitize(trimmed, sanitize.Config{})
	}
	if !cfg.EnableCodeAware {
		return sanitize.Sanitize(trimmed, sanitize.Config{})
	}
	return codeAwareBuild(trimmed)
}

func codeAwareBuild(query string) string {
	fields := strings.Fields(query)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if IsCodePattern(f) {
			escaped := strings.ReplaceAll(f, `"`, `""`)
			parts = append(parts, `"`+escaped+`"`)
		} else {
			parts = append(parts, quoteBareTerm(f))
		}
	}
	return strings.Join(parts, " ")
}

func quoteBareTerm(tok string) string {
	escaped := strings.ReplaceAll(tok, `"`, `""`)
	return `"` + escaped + `"`
}

// Variants returns the ordered list of progressively looser fallback
// queries, most specific to least, duplicates collapsed. The first entry
// is always the primary.
func Variants(query string, cfg Config) []string {
	primary := Build(query, cfg)
	trimmed := strings.TrimSpace(query)
	sanitized := sanitize.Sanitize(trimmed, sanitize.Config{})

	fields := strings.Fields(trimmed)

	var wholePhrase string
	if trimmed != "" {
		escaped := strings.ReplaceAll(trimmed, `"`, `""`)
		wholePhrase = `"` + escaped + `"`
	}

	var prefixTerms []string
	for _, f := range fields {
		escaped := strings.ReplaceAll(f, `"`, `""`)
		prefixTerms = append(prefixTerms, `"`+escaped+`"*`)
	}
	prefixVariant := strings.Join(prefixTerms, " ")

	var orTerms []string
	for _, f := range fields {
		escaped := strings.ReplaceAll(f, `"`, `""`)
		orTerms = append(orTerms, `"`+escaped+`"`)
	}
	orVariant := strings.Join(orTerms, " OR ")

	var keywordTerms []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if _, isStop := stopWords[lower]; isStop && !containsTokenizerSpecial(f) {
			continue
		}
		escaped := strings.ReplaceAll(f, `"`, `""`)
		keywordTerms = append(keywordTerms, `"`+escaped+`"`)
	}
	keywordVariant := strings.Join(keywordTerms, " OR ")

	ordered := []string{primary, wholePhrase, sanitized, prefixVariant, orVariant, keywordVariant}

	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, v := range ordered {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func containsTokenizerSpecial(tok string) bool {
	return strings.ContainsAny(tok, "._$@->:#")
}
