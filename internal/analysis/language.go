package analysis

import (
	"path/filepath"
	"strings"
)

// extensionToLanguage covers the languages this engine's discovery walk
// and fallback analyzer recognize. It is intentionally smaller than "every
// language a text editor might highlight": spec.md scopes concrete parsers
// out, so the list only needs to be broad enough for realistic source
// trees, not exhaustive.
var extensionToLanguage = map[string]Language{
	".go":       LangGo,
	".js":       LangJavaScript,
	".mjs":      LangJavaScript,
	".cjs":      LangJavaScript,
	".jsx":      LangJavaScript,
	".ts":       LangTypeScript,
	".tsx":      LangTypeScript,
	".mts":      LangTypeScript,
	".cts":      LangTypeScript,
	".py":       LangPython,
	".pyw":      LangPython,
	".pyi":      LangPython,
	".rs":       LangRust,
	".java":     LangJava,
	".c":        LangC,
	".h":        LangC,
	".cpp":      LangCPP,
	".cc":       LangCPP,
	".cxx":      LangCPP,
	".hpp":      LangCPP,
	".hxx":      LangCPP,
	".hh":       LangCPP,
	".cs":       LangCSharp,
	".rb":       LangRuby,
	".rake":     LangRuby,
	".php":      LangPHP,
	".phtml":    LangPHP,
	".sh":       LangBash,
	".bash":     LangBash,
	".zsh":      LangBash,
	".sql":      LangSQL,
	".html":     LangHTML,
	".htm":      LangHTML,
	".css":      LangCSS,
	".scss":     LangCSS,
	".less":     LangCSS,
	".yaml":     LangYAML,
	".yml":      LangYAML,
	".toml":     LangTOML,
	".json":     LangJSON,
	".jsonc":    LangJSON,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
	".proto":    LangProtobuf,
}

// filenameToLanguage maps extension-less filenames to a language.
var filenameToLanguage = map[string]Language{
	"Dockerfile":  LangDockerfile,
	"dockerfile":  LangDockerfile,
	"Makefile":    LangBash,
	"makefile":    LangBash,
	"GNUmakefile": LangBash,
}

// DetectLanguage returns the language filePath's extension or filename
// implies, LangUnknown if nothing matches.
func DetectLanguage(filePath string) Language {
	if lang, ok := extensionToLanguage[strings.ToLower(filepath.Ext(filePath))]; ok {
		return lang
	}

	filename := filepath.Base(filePath)
	if lang, ok := filenameToLanguage[filename]; ok {
		return lang
	}
	if strings.HasPrefix(filename, "Dockerfile.") || strings.HasPrefix(filename, "dockerfile.") {
		return LangDockerfile
	}

	return LangUnknown
}

// IsAnalyzable reports whether DetectLanguage recognizes filePath at all,
// independent of whether a Parser is registered for that language: a
// recognized-but-unparsed file still gets a minimal FileAnalysis from the
// fallback analyzer rather than being skipped by discovery or a VCS hook.
func IsAnalyzable(filePath string) bool {
	return DetectLanguage(filePath) != LangUnknown
}

// SupportedExtensions lists every extension DetectLanguage recognizes.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionToLanguage))
	for ext := range extensionToLanguage {
		exts = append(exts, ext)
	}
	return exts
}
