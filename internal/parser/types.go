package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Language represents supported programming languages
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageGo         Language = "go"
	LanguageTypeScript Language = "typescript"
)

var (
	// ErrUnavailable means a grammar could not be loaded into a parser.
	// Nothing useful can be produced without it.
	ErrUnavailable = errors.New("tree-sitter grammar unavailable")
	// ErrUnsupported is returned for a language with no registered grammar.
	ErrUnsupported = errors.New("unsupported language")
)

const setupHint = "rebuild with CGO_ENABLED=1 against a grammar release matching github.com/tree-sitter/go-tree-sitter " +
	"(go get github.com/tree-sitter/tree-sitter-python@latest)"

// Languages returns every language with a registered grammar.
func Languages() []Language {
	return []Language{LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageGo}
}

// ParseLanguage resolves a user-supplied language name. Common aliases are
// accepted.
func ParseLanguage(name string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py":
		return LanguagePython, nil
	case "javascript", "js":
		return LanguageJavaScript, nil
	case "typescript", "ts":
		return LanguageTypeScript, nil
	case "go", "golang":
		return LanguageGo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}
