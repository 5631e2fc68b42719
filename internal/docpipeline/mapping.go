package docpipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/codequery/engine/internal/analysis"
	"github.com/codequery/engine/internal/docmodel"
)

// buildFileDoc turns one analyzed file into the FileDoc row C4 persists.
// No language model is in scope here: overview is a deterministic summary
// derived from the extracted symbols, not generated prose.
func buildFileDoc(dataset, relPath string, fa *analysis.FileAnalysis, contentHash string, fullContent string, commit string, now time.Time) docmodel.FileDoc {
	doc := docmodel.FileDoc{
		Filepath:     relPath,
		Filename:     filepath.Base(relPath),
		Dataset:      dataset,
		ContentHash:  contentHash,
		FullContent:  fullContent,
		DocumentedAt: now,
	}
	if commit != "" {
		doc.DocumentedAtCommit = commit
	}

	functions := docmodel.NamedBlob{}
	types := docmodel.NamedBlob{}
	constants := docmodel.NamedBlob{}
	exports := docmodel.NamedBlob{}

	for _, sym := range fa.Symbols {
		attrs := map[string]any{
			"kind":       string(sym.Kind),
			"line_start": sym.LineStart,
			"line_end":   sym.LineEnd,
		}
		if sym.Signature != "" {
			attrs["signature"] = sym.Signature
		}
		if sym.DocComment != "" {
			attrs["doc_comment"] = sym.DocComment
		}

		switch sym.Kind {
		case analysis.KindFunction, analysis.KindMethod, analysis.KindConstructor:
			functions[sym.Name] = attrs
		case analysis.KindClass, analysis.KindInterface, analysis.KindType, analysis.KindEnum:
			types[sym.Name] = attrs
		case analysis.KindConstant:
			constants[sym.Name] = attrs
		}
		if sym.Exported {
			exports[sym.Name] = map[string]any{"kind": string(sym.Kind)}
		}
	}

	imports := docmodel.NamedBlob{}
	depSet := map[string]struct{}{}
	for _, rel := range fa.Relationships {
		if rel.Kind != analysis.RelImport || rel.TargetFile == "" {
			continue
		}
		imports[rel.TargetFile] = map[string]any{"line": rel.Line}
		depSet[rel.TargetFile] = struct{}{}
	}
	var deps []string
	for d := range depSet {
		deps = append(deps, d)
	}
	sort.Strings(deps)

	if len(functions) > 0 {
		doc.Functions = functions
	}
	if len(types) > 0 {
		doc.TypesInterfacesClasses = types
	}
	if len(constants) > 0 {
		doc.Constants = constants
	}
	if len(exports) > 0 {
		doc.Exports = exports
	}
	if len(imports) > 0 {
		doc.Imports = imports
	}
	doc.Dependencies = deps

	doc.Overview = fmt.Sprintf("%s file with %d top-level symbol(s) and %d dependency import(s)",
		fa.Language, len(fa.Symbols), len(deps))

	return doc
}
