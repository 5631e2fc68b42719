package analysis

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		expected Language
	}{
		{"go file", "main.go", LangGo},
		{"go in subdir", "pkg/handler/router.go", LangGo},
		{"js file", "app.js", LangJavaScript},
		{"jsx file", "Component.jsx", LangJavaScript},
		{"ts file", "app.ts", LangTypeScript},
		{"tsx file", "Component.tsx", LangTypeScript},
		{"py file", "script.py", LangPython},
		{"rust file", "main.rs", LangRust},
		{"java file", "Main.java", LangJava},
		{"c file", "main.c", LangC},
		{"c header", "header.h", LangC},
		{"cpp file", "main.cpp", LangCPP},
		{"csharp file", "Program.cs", LangCSharp},
		{"ruby file", "app.rb", LangRuby},
		{"php file", "index.php", LangPHP},
		{"sh file", "script.sh", LangBash},
		{"sql file", "query.sql", LangSQL},
		{"html file", "index.html", LangHTML},
		{"css file", "style.css", LangCSS},
		{"yaml file", "config.yaml", LangYAML},
		{"toml file", "config.toml", LangTOML},
		{"json file", "data.json", LangJSON},
		{"jsonc file", "tsconfig.jsonc", LangJSON},
		{"md file", "README.md", LangMarkdown},
		{"proto file", "service.proto", LangProtobuf},
		{"Dockerfile", "Dockerfile", LangDockerfile},
		{"dockerfile lowercase", "dockerfile", LangDockerfile},
		{"Dockerfile.prod", "Dockerfile.prod", LangDockerfile},
		{"Makefile", "Makefile", LangBash},
		{"unknown extension", "file.xyz", LangUnknown},
		{"no extension", "LICENSE", LangUnknown},
		{"uppercase GO", "main.GO", LangGo},
		{"nested path go", "src/pkg/handler/router.go", LangGo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.filePath); got != tt.expected {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tt.filePath, got, tt.expected)
			}
		})
	}
}

func TestIsAnalyzable(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		expected bool
	}{
		{"go file is analyzable", "main.go", true},
		{"json file is analyzable", "data.json", true},
		{"Dockerfile is analyzable", "Dockerfile", true},
		{"unknown is not analyzable", "file.xyz", false},
		{"no extension not analyzable", "LICENSE", false},
		{"empty path not analyzable", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAnalyzable(tt.filePath); got != tt.expected {
				t.Errorf("IsAnalyzable(%q) = %v, want %v", tt.filePath, got, tt.expected)
			}
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	if len(exts) == 0 {
		t.Fatal("SupportedExtensions() returned empty list")
	}

	extMap := make(map[string]bool)
	for _, ext := range exts {
		if ext == "" || ext[0] != '.' {
			t.Errorf("SupportedExtensions() contains invalid extension %q", ext)
		}
		if extMap[ext] {
			t.Errorf("SupportedExtensions() contains duplicate %q", ext)
		}
		extMap[ext] = true
	}

	for _, want := range []string{".go", ".ts", ".py", ".js", ".json"} {
		if !extMap[want] {
			t.Errorf("SupportedExtensions() missing %q", want)
		}
	}
}

func TestParserRegistry(t *testing.T) {
	t.Run("NewParserRegistry registers the JSON parser", func(t *testing.T) {
		reg := NewParserRegistry()
		parser, ok := reg.GetParser(LangJSON)
		if !ok || parser == nil {
			t.Fatal("registry missing JSON parser")
		}
		if parser.Language() != LangJSON {
			t.Errorf("parser.Language() = %q, want %q", parser.Language(), LangJSON)
		}
	})

	t.Run("GetParser returns false for a language with no parser", func(t *testing.T) {
		reg := NewParserRegistry()
		parser, ok := reg.GetParser(LangGo)
		if ok || parser != nil {
			t.Error("GetParser(LangGo) should return false, nil: no Go parser is registered")
		}
	})

	t.Run("Register adds a custom parser", func(t *testing.T) {
		reg := NewParserRegistry()
		mock := &mockParser{lang: "testlang"}
		reg.Register(mock)

		parser, ok := reg.GetParser("testlang")
		if !ok || parser != mock {
			t.Error("custom parser not found after Register")
		}
	})

	t.Run("Parse returns a bare FileAnalysis for an unknown language", func(t *testing.T) {
		reg := NewParserRegistry()
		result, err := reg.Parse([]byte("???"), "file.xyz")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if result.Path != "file.xyz" || result.Language != string(LangUnknown) {
			t.Errorf("result = %+v, want path=file.xyz language=unknown", result)
		}
	})

	t.Run("Parse returns a bare FileAnalysis for a language without a parser", func(t *testing.T) {
		reg := &ParserRegistry{parsers: make(map[Language]Parser)}
		result, err := reg.Parse([]byte("package main\n"), "main.go")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if result.Language != string(LangGo) {
			t.Errorf("result.Language = %q, want %q", result.Language, LangGo)
		}
		if len(result.Symbols) != 0 {
			t.Errorf("expected no symbols without a registered parser, got %d", len(result.Symbols))
		}
	})
}

func TestAnalyzeJSON(t *testing.T) {
	code := `{"name": "demo", "nested": {"enabled": true}, "tags": ["a", "b"]}`

	result, err := Analyze([]byte(code), "config.json")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Language != string(LangJSON) {
		t.Errorf("Language = %q, want %q", result.Language, LangJSON)
	}

	byName := make(map[string]Symbol)
	for _, sym := range result.Symbols {
		byName[sym.Name] = sym
	}

	if sym, ok := byName["name"]; !ok || sym.Kind != KindProperty {
		t.Errorf("name = %+v, want KindProperty", sym)
	}
	if sym, ok := byName["nested"]; !ok || sym.Kind != KindClass {
		t.Errorf("nested = %+v, want KindClass", sym)
	}
	if sym, ok := byName["nested.enabled"]; !ok || sym.Kind != KindProperty {
		t.Errorf("nested.enabled = %+v, want KindProperty", sym)
	}
	if sym, ok := byName["tags"]; !ok || sym.Kind != KindVariable {
		t.Errorf("tags = %+v, want KindVariable", sym)
	}
	for _, sym := range byName {
		if !sym.Exported {
			t.Errorf("%s.Exported = false, want true", sym.Name)
		}
	}
}

func TestAnalyzeMalformedJSONReturnsEmptyAnalysis(t *testing.T) {
	result, err := Analyze([]byte("{not json"), "broken.json")
	if err != nil {
		t.Fatalf("Analyze returned an error for malformed input: %v", err)
	}
	if len(result.Symbols) != 0 {
		t.Errorf("expected no symbols for malformed JSON, got %d", len(result.Symbols))
	}
}

func TestAnalyzeUnknownLanguageReturnsEmptyAnalysis(t *testing.T) {
	result, err := Analyze([]byte("unknown content"), "file.xyz")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Language != string(LangUnknown) {
		t.Errorf("Language = %q, want %q", result.Language, LangUnknown)
	}
	if len(result.Symbols) != 0 {
		t.Errorf("expected 0 symbols, got %d", len(result.Symbols))
	}
}

// mockParser is a minimal stand-in used to test custom parser registration.
type mockParser struct {
	lang Language
}

func (m *mockParser) Parse(content []byte, filePath string) (*FileAnalysis, error) {
	return &FileAnalysis{Path: filePath, Language: string(m.lang)}, nil
}

func (m *mockParser) Language() Language {
	return m.lang
}
