package querybuild

import (
	"strings"
	"testing"

	"github.com/codequery/engine/internal/sanitize"
)

func TestIsCodePattern(t *testing.T) {
	cases := map[string]bool{
		"_internal_var":       true,
		"observable$":         true,
		"System.out.println":  true,
		"my-css-class":        true,
		"httpClient":          true,
		"snake_case_name":     true,
		"obj->method":         true,
		"Class::method":       true,
		"#selector":           true,
		"plain":                false,
		"word":                 false,
	}
	for tok, want := range cases {
		if got := IsCodePattern(tok); got != want {
			t.Errorf("IsCodePattern(%q) = %v, want %v", tok, got, want)
		}
	}
}

func TestBuildFullyQuotedPassthrough(t *testing.T) {
	q := `"exact phrase"`
	if got := Build(q, Config{EnableCodeAware: true}); got != q {
		t.Fatalf("got %q want %q", got, q)
	}
}

func TestBuildCodeAwareQuotesCodeTokens(t *testing.T) {
	got := Build("validate_token for user", Config{EnableCodeAware: true})
	if !strings.Contains(got, `"validate_token"`) {
		t.Fatalf("expected code token quoted, got %q", got)
	}
}

func TestBuildAdvancedPreservesOperators(t *testing.T) {
	got := Build("auth OR login*", Config{EnableCodeAware: true})
	if !strings.Contains(got, "OR") {
		t.Fatalf("expected operator preserved, got %q", got)
	}
}

func TestVariantsOrderedAndDeduped(t *testing.T) {
	variants := Variants("validate token", Config{EnableCodeAware: true})
	if len(variants) == 0 {
		t.Fatal("expected at least one variant")
	}
	seen := make(map[string]int)
	for _, v := range variants {
		seen[v]++
	}
	for v, n := range seen {
		if n > 1 {
			t.Fatalf("duplicate variant %q appears %d times", v, n)
		}
	}
	primary := Build("validate token", Config{EnableCodeAware: true})
	if variants[0] != primary {
		t.Fatalf("expected primary first, got %q", variants[0])
	}
}

func TestSanitizeBuildFixedPointForCodePatterns(t *testing.T) {
	x := "validate_token obj->method"
	built := Build(x, Config{EnableCodeAware: true})
	once := sanitize.Sanitize(built, sanitize.Config{})
	if once != built {
		t.Fatalf("not a fixed point: built=%q sanitized=%q", built, once)
	}
}
