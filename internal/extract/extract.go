// Package extract reads source files and runs them through the parser and
// outline extractor, sorting failures into not-found, read and parse errors.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"outline/internal/parser"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrRead     = errors.New("failed to read file")
	ErrParse    = errors.New("failed to parse file")
)

// Result is the outline of one file.
type Result struct {
	Path     string
	Language parser.Language
	Entries  []string
}

// Service extracts outlines from files and source buffers.
type Service struct {
	lang parser.Language
}

// New returns a Service. A non-empty lang forces that grammar for every
// file; otherwise the language is chosen from the file extension.
func New(lang parser.Language) *Service {
	return &Service{lang: lang}
}

// LanguageFor returns the grammar used for path.
func (s *Service) LanguageFor(path string) parser.Language {
	if s.lang != "" {
		return s.lang
	}
	return parser.LanguageFor(path)
}

// ExtractFile reads path and returns its outline.
func (s *Service) ExtractFile(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w %s: %v", ErrRead, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w %s: is a directory", ErrRead, path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrRead, path, err)
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w %s: not valid UTF-8", ErrRead, path)
	}

	lang := s.LanguageFor(path)
	entries, err := s.ExtractSource(lang, src)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("file", path).Str("language", string(lang)).Int("entries", len(entries)).Msg("extracted outline")
	return &Result{Path: path, Language: lang, Entries: entries}, nil
}

// ExtractSource returns the outline of src parsed as lang.
func (s *Service) ExtractSource(lang parser.Language, src []byte) ([]string, error) {
	p, err := parser.New(lang)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	entries, err := p.Extract(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return entries, nil
}
