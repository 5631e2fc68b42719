// Package sanitize implements the query sanitizer (C1): a whitelist-based
// neutralization of full-text-search metacharacters that preserves quoted
// phrases and NEAR(...) clauses. It generalizes the single-phrase quoting
// already used by the teacher's butler.preprocessQuery and
// index.sanitizeFTSQuery into the fuller per-token algorithm spec.md
// requires, so "*", "(", ")", and friends can never leak out of a bare
// token.
//
// Sanitize is pure, stateless, and safe for concurrent use: it carries no
// package-level state, per spec.md's concurrency model for C1/C2/C3/C5.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Config carries no tunables today but is accepted per the C1 contract so
// call sites pass configuration per-call rather than relying on package
// state.
type Config struct{}

// EmptyMatchSentinel is returned for empty input.
const EmptyMatchSentinel = `""`

var nearRe = regexp.MustCompile(`(?i)NEAR\([^)]*\)`)

var keywordOps = map[string]string{
	"AND": "AND",
	"OR":  "OR",
	"NOT": "NOT",
}

type placeholder struct {
	token string
	value string
}

// Sanitize neutralizes user_query per spec.md §4.1 and returns a
// syntactically valid FTS query string. It never errors.
func Sanitize(userQuery string, _ Config) string {
	trimmed := strings.TrimSpace(userQuery)
	if trimmed == "" {
		return EmptyMatchSentinel
	}

	var placeholders []placeholder
	makePlaceholder := func(value string) string {
		tok := fmt.Sprintf("\x00PH%d\x00", len(placeholders))
		placeholders = append(placeholders, placeholder{token: tok, value: value})
		return tok
	}

	// 1. Extract quoted phrases, doubling internal quotes.
	residue := extractQuoted(trimmed, makePlaceholder)

	// 2. Extract NEAR(...) clauses.
	residue = nearRe.ReplaceAllStringFunc(residue, func(m string) string {
		return makePlaceholder(m)
	})

	// 3. Tokenize the residue on whitespace.
	fields := strings.Fields(residue)
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if strings.HasPrefix(tok, "\x00PH") {
			out = append(out, tok)
			continue
		}
		upper := strings.ToUpper(tok)
		if op, ok := keywordOps[upper]; ok {
			out = append(out, op)
			continue
		}
		if isSolelyMetachars(tok) {
			// Tokens whose content is solely FTS metacharacters become an
			// empty quoted term, which is simply dropped.
			continue
		}
		out = append(out, quoteToken(tok))
	}

	joined := strings.Join(out, " ")

	// 4. Reinsert placeholders verbatim.
	for _, p := range placeholders {
		joined = strings.Replace(joined, p.token, p.value, 1)
	}

	joined = strings.TrimSpace(joined)
	if joined == "" {
		return EmptyMatchSentinel
	}
	return joined
}

// extractQuoted finds "..." phrases (with doubled-quote escaping inside)
// and replaces each with a placeholder produced via make, reproducing the
// phrase wrapped in quotes so it resurfaces unchanged.
func extractQuoted(s string, make func(string) string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '"' {
			b.WriteByte(s[i])
			i++
			continue
		}
		// Find the matching closing quote, treating "" as an escaped quote.
		j := i + 1
		var phrase strings.Builder
		closed := false
		for j < len(s) {
			if s[j] == '"' {
				if j+1 < len(s) && s[j+1] == '"' {
					phrase.WriteByte('"')
					j += 2
					continue
				}
				closed = true
				j++
				break
			}
			phrase.WriteByte(s[j])
			j++
		}
		if !closed {
			// Unterminated quote: the rest of the input becomes one quoted
			// phrase, closed off defensively rather than losing the content.
			closed = true
		}
		escaped := strings.ReplaceAll(phrase.String(), `"`, `""`)
		b.WriteString(make(fmt.Sprintf(`"%s"`, escaped)))
		i = j
	}
	return b.String()
}

// quoteToken wraps a bare token in quotes, doubling internal quotes.
func quoteToken(tok string) string {
	escaped := strings.ReplaceAll(tok, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

// metacharSingles is the whitelist of characters spec.md names as neutralized
// by quoting: * ( ) ^ { } : [ ] - + @ # $ and the multi-char -> / ::.
const metacharSingles = `*()^{}:[]-+@#$`

// isSolelyMetachars reports whether tok's entire content is built from the
// named FTS metacharacters (including the multi-char -> and ::
// sequences), with no other content surviving to anchor a real term.
func isSolelyMetachars(tok string) bool {
	stripped := strings.ReplaceAll(tok, "->", "")
	stripped = strings.ReplaceAll(stripped, "::", "")
	if stripped == "" {
		return true
	}
	for _, r := range stripped {
		if !strings.ContainsRune(metacharSingles, r) {
			return false
		}
	}
	return true
}
