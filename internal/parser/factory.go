package parser

import (
	"path/filepath"
	"strings"
)

// DetectLanguage detects the programming language based on file extension
func DetectLanguage(filePath string) Language {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".py", ".pyi":
		return LanguagePython
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".ts", ".tsx", ".mts", ".cts":
		return LanguageTypeScript
	case ".go":
		return LanguageGo
	default:
		return ""
	}
}

// LanguageFor returns the language for filePath, falling back to Python for
// unknown extensions.
func LanguageFor(filePath string) Language {
	if lang := DetectLanguage(filePath); lang != "" {
		return lang
	}
	return LanguagePython
}

// SupportedExtensions returns all supported file extensions
func SupportedExtensions() []string {
	return []string{
		".py", ".pyi",
		".js", ".jsx", ".mjs", ".cjs",
		".ts", ".tsx", ".mts", ".cts",
		".go",
	}
}

// IsSupportedFile checks if a file is supported based on its extension
func IsSupportedFile(filePath string) bool {
	return DetectLanguage(filePath) != ""
}
