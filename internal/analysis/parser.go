package analysis

// Parser implements language-specific symbol/relationship extraction for
// one Language. Per spec.md §1, concrete parsers are the exception, not
// the rule: docpipeline.AnalyzerRegistry falls back to a minimal
// path-and-language-only record for any language without one registered
// here.
type Parser interface {
	Parse(content []byte, filePath string) (*FileAnalysis, error)
	Language() Language
}

// ParserRegistry dispatches DetectLanguage's result to a registered
// Parser, or returns a bare FileAnalysis when none is registered for that
// language.
type ParserRegistry struct {
	parsers map[Language]Parser
}

// NewParserRegistry returns a registry seeded with the one parser this
// engine ships: JSON, used for config and manifest files. Every other
// language falls through to the caller's fallback analyzer.
func NewParserRegistry() *ParserRegistry {
	reg := &ParserRegistry{
		parsers: make(map[Language]Parser),
	}
	reg.Register(NewJSONParser())
	return reg
}

// Register adds or replaces the parser for p.Language().
func (r *ParserRegistry) Register(p Parser) {
	r.parsers[p.Language()] = p
}

// GetParser returns the parser registered for lang, if any.
func (r *ParserRegistry) GetParser(lang Language) (Parser, bool) {
	p, ok := r.parsers[lang]
	return p, ok
}

// Parse detects filePath's language and dispatches to its parser. A file
// with no registered parser (or no detectable language) still returns a
// minimal FileAnalysis rather than an error.
func (r *ParserRegistry) Parse(content []byte, filePath string) (*FileAnalysis, error) {
	lang := DetectLanguage(filePath)
	if lang == LangUnknown {
		return &FileAnalysis{Path: filePath, Language: string(LangUnknown)}, nil
	}

	parser, ok := r.GetParser(lang)
	if !ok {
		return &FileAnalysis{Path: filePath, Language: string(lang)}, nil
	}

	return parser.Parse(content, filePath)
}

var defaultRegistry = NewParserRegistry()

// Analyze runs the default ParserRegistry against content.
func Analyze(content []byte, filePath string) (*FileAnalysis, error) {
	return defaultRegistry.Parse(content, filePath)
}
