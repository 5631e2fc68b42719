package analysis

// SymbolKind classifies one Symbol a Parser extracts from a file.
type SymbolKind string

const (
	KindClass       SymbolKind = "class"
	KindInterface   SymbolKind = "interface"
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindVariable    SymbolKind = "variable"
	KindConstant    SymbolKind = "constant"
	KindType        SymbolKind = "type"
	KindEnum        SymbolKind = "enum"
	KindProperty    SymbolKind = "property"
	KindConstructor SymbolKind = "constructor"
)

// RelationshipKind classifies one Relationship a Parser extracts between
// a file and another symbol or file.
type RelationshipKind string

const (
	RelImport    RelationshipKind = "import"
	RelCall      RelationshipKind = "call"
	RelReference RelationshipKind = "reference"
)

// Symbol is one named construct found in a file: a function, type,
// constant, or similar. docpipeline's mapping step buckets these into
// FileDoc's Functions/Exports/TypesInterfacesClasses/Constants blobs by
// Kind.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	LineStart  int
	LineEnd    int
	Signature  string
	DocComment string
	Exported   bool
}

// Relationship is a directed edge a Parser finds from a file to another
// symbol or file, e.g. an import.
type Relationship struct {
	TargetFile   string
	TargetSymbol string
	Kind         RelationshipKind
	Line         int
}

// FileAnalysis is the outcome of analyzing one file's content: the
// detected language plus whatever symbols and relationships the matching
// Parser (or the fallback) extracted. A fallback result still carries
// Path and Language with empty Symbols/Relationships.
type FileAnalysis struct {
	Path          string
	Language      string
	Symbols       []Symbol
	Relationships []Relationship
}

// Language is the set of languages DetectLanguage recognizes by
// extension or filename.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangBash       Language = "bash"
	LangSQL        Language = "sql"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangYAML       Language = "yaml"
	LangTOML       Language = "toml"
	LangJSON       Language = "json"
	LangMarkdown   Language = "markdown"
	LangDockerfile Language = "dockerfile"
	LangProtobuf   Language = "protobuf"
	LangUnknown    Language = "unknown"
)
