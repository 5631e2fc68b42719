package docpipeline

import (
	"github.com/codequery/engine/internal/analysis"
)

// Analyzer is the pipeline's analyzer contract: can_analyze(path) -> bool,
// analyze(path) -> FileAnalysis. A registry iterates analyzers in
// registration order and the fallback analyzer, registered last, always
// matches.
type Analyzer interface {
	CanAnalyze(path string) bool
	Analyze(content []byte, path string) (*analysis.FileAnalysis, error)
}

// AnalyzerRegistry dispatches to the first registered Analyzer willing to
// handle a path. It is read-only after construction, so concurrent Analyze
// calls from multiple worker goroutines are safe.
type AnalyzerRegistry struct {
	analyzers []Analyzer
}

// NewAnalyzerRegistry builds the default registry: a parser-backed analyzer
// for every language parsers.GetParser recognizes, then a fallback that
// records just the path and detected language for everything else.
func NewAnalyzerRegistry(parsers *analysis.ParserRegistry) *AnalyzerRegistry {
	reg := &AnalyzerRegistry{}
	reg.Register(parserAnalyzer{parsers: parsers})
	reg.Register(fallbackAnalyzer{})
	return reg
}

// Register appends an analyzer. Order matters: the first one whose
// CanAnalyze returns true wins, so custom analyzers must be registered
// ahead of the fallback to take effect.
func (r *AnalyzerRegistry) Register(a Analyzer) {
	r.analyzers = append(r.analyzers, a)
}

// Analyze returns the result of the first matching analyzer. A registry
// with a fallback registered (the default) never returns an error here for
// an unrecognized language; parse errors from a real parser still surface.
func (r *AnalyzerRegistry) Analyze(content []byte, path string) (*analysis.FileAnalysis, error) {
	for _, a := range r.analyzers {
		if a.CanAnalyze(path) {
			return a.Analyze(content, path)
		}
	}
	return &analysis.FileAnalysis{Path: path, Language: string(analysis.LangUnknown)}, nil
}

type parserAnalyzer struct {
	parsers *analysis.ParserRegistry
}

func (p parserAnalyzer) CanAnalyze(path string) bool {
	lang := analysis.DetectLanguage(path)
	if lang == analysis.LangUnknown {
		return false
	}
	_, ok := p.parsers.GetParser(lang)
	return ok
}

func (p parserAnalyzer) Analyze(content []byte, path string) (*analysis.FileAnalysis, error) {
	return p.parsers.Parse(content, path)
}

// fallbackAnalyzer matches every path. It never fails: a file that cannot
// be parsed still gets a minimal record instead of dropping out of the
// pipeline, matching P-style "errors are captured per-file, never cascade."
type fallbackAnalyzer struct{}

func (fallbackAnalyzer) CanAnalyze(string) bool { return true }

func (fallbackAnalyzer) Analyze(_ []byte, path string) (*analysis.FileAnalysis, error) {
	return &analysis.FileAnalysis{
		Path:     path,
		Language: string(analysis.DetectLanguage(path)),
	}, nil
}
