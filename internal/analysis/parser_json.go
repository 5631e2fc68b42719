package analysis

import (
	"encoding/json"
	"sort"
	"strconv"
)

// JSONParser treats a JSON document's object keys as Symbols: a nested
// object is classified as KindClass (a structural grouping), an array as
// KindVariable, and a scalar as KindProperty. This gives FileDoc a useful
// outline for config and manifest files without a syntax tree: the
// document's own structure is the outline.
type JSONParser struct{}

// NewJSONParser returns a JSONParser. It carries no state.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Language() Language {
	return LangJSON
}

// Parse walks the decoded document, recording one Symbol per key at every
// nesting level. A malformed document still returns a FileAnalysis with
// no symbols rather than an error: one bad file must never fail the
// pipeline run it's part of.
func (p *JSONParser) Parse(content []byte, filePath string) (*FileAnalysis, error) {
	fa := &FileAnalysis{
		Path:     filePath,
		Language: string(LangJSON),
	}

	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return fa, nil
	}

	walkJSON(doc, "", fa)
	sort.Slice(fa.Symbols, func(i, j int) bool { return fa.Symbols[i].Name < fa.Symbols[j].Name })
	return fa, nil
}

func walkJSON(value any, path string, fa *FileAnalysis) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			name := key
			if path != "" {
				name = path + "." + key
			}
			fa.Symbols = append(fa.Symbols, Symbol{
				Name:     name,
				Kind:     jsonKind(child),
				Exported: true,
			})
			walkJSON(child, name, fa)
		}
	case []any:
		for i, item := range v {
			walkJSON(item, path+"["+strconv.Itoa(i)+"]", fa)
		}
	}
}

func jsonKind(value any) SymbolKind {
	switch value.(type) {
	case map[string]any:
		return KindClass
	case []any:
		return KindVariable
	default:
		return KindProperty
	}
}
