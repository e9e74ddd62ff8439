package parser

import (
	"path/filepath"
	"strings"
)

// Language is a schema source language.
type Language int

const (
	// LanguageTypeScript covers .ts, .mts, .cts and .tsx.
	LanguageTypeScript Language = iota
	// LanguageJavaScript covers .js, .jsx, .mjs and .cjs.
	LanguageJavaScript
	LanguageUnknown
)

func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage maps a file extension to a Language.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether filePath needs the TSX grammar.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// ParseLanguageString converts "typescript"/"ts" or "javascript"/"js".
func ParseLanguageString(lang string) Language {
	switch strings.ToLower(lang) {
	case "typescript", "ts":
		return LanguageTypeScript
	case "javascript", "js":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}
