package sanitize

import (
	"strings"
	"testing"
)

func TestSanitizeEmpty(t *testing.T) {
	if got := Sanitize("", Config{}); got != EmptyMatchSentinel {
		t.Fatalf("empty input: got %q want %q", got, EmptyMatchSentinel)
	}
	if got := Sanitize("   ", Config{}); got != EmptyMatchSentinel {
		t.Fatalf("blank input: got %q want %q", got, EmptyMatchSentinel)
	}
}

func TestSanitizeWrapsBareTokens(t *testing.T) {
	got := Sanitize("validate_token login", Config{})
	want := `"validate_token" "login"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSanitizePreservesOperators(t *testing.T) {
	got := Sanitize("auth and login OR token", Config{})
	want := `"auth" AND "login" OR "token"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSanitizePreservesQuotedPhrase(t *testing.T) {
	got := Sanitize(`"exact phrase"`, Config{})
	want := `"exact phrase"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSanitizeQuotesBareTokenBesideQuotedPhrase(t *testing.T) {
	got := Sanitize(`say "hi"`, Config{})
	// "say" is a bare token, "hi" is a quoted phrase reinserted verbatim.
	want := `"say" "hi"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSanitizePreservesNear(t *testing.T) {
	got := Sanitize(`NEAR(auth login, 5) token`, Config{})
	if !strings.Contains(got, "NEAR(auth login, 5)") {
		t.Fatalf("expected NEAR clause preserved, got %q", got)
	}
	if !strings.Contains(got, `"token"`) {
		t.Fatalf("expected token quoted, got %q", got)
	}
}

func TestSanitizeDropsPureMetacharTokens(t *testing.T) {
	got := Sanitize("(((( ))))", Config{})
	if got != EmptyMatchSentinel {
		t.Fatalf("got %q want sentinel", got)
	}
}

func TestSanitizeNoBareMetacharLeaks(t *testing.T) {
	got := Sanitize(`foo* (bar) baz^qux`, Config{})
	for _, tok := range strings.Fields(got) {
		if tok == "AND" || tok == "OR" || tok == "NOT" {
			continue
		}
		if !strings.HasPrefix(tok, `"`) || !strings.HasSuffix(tok, `"`) {
			t.Fatalf("bare token leaked: %q in %q", tok, got)
		}
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	cases := []string{
		"validate_token",
		`"exact phrase"`,
		"auth AND login OR token",
		"NEAR(a b, 4) c",
		"foo* bar(baz)",
		"",
		"$client->method",
	}
	for _, c := range cases {
		once := Sanitize(c, Config{})
		twice := Sanitize(once, Config{})
		if once != twice {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}
