// Package parser adapts tree-sitter syntax trees to the node contract used by
// the outline extractor.
package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"outline/internal/outline"
)

// Parser wraps a tree-sitter parser bound to one grammar. It is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	grammar *grammar
	ts      *sitter.Parser
}

// New creates a parser for lang. It fails with ErrUnavailable when the
// grammar cannot be loaded.
func New(lang Language) (*Parser, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, lang)
	}

	ts := sitter.NewParser()
	if err := ts.SetLanguage(g.language()); err != nil {
		ts.Close()
		return nil, fmt.Errorf("%w: %s: %v; %s", ErrUnavailable, lang, err, setupHint)
	}

	return &Parser{grammar: g, ts: ts}, nil
}

// Check verifies that every given language can be loaded. With no
// arguments it checks all registered grammars.
func Check(langs ...Language) error {
	if len(langs) == 0 {
		langs = Languages()
	}
	for _, lang := range langs {
		p, err := New(lang)
		if err != nil {
			return err
		}
		p.Close()
	}
	return nil
}

// Language returns the language the parser was created for.
func (p *Parser) Language() Language {
	return p.grammar.lang
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.ts.Close()
}

// Parse parses source into a tree. Syntax errors do not fail the parse;
// tree-sitter recovers and the tree contains ERROR nodes instead.
func (p *Parser) Parse(source []byte) (*Tree, error) {
	tree := p.ts.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s source", p.grammar.lang)
	}
	return &Tree{tree: tree, source: source, grammar: p.grammar}, nil
}

// Extract parses source and returns its outline lines.
func (p *Parser) Extract(source []byte) ([]string, error) {
	tree, err := p.Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return outline.Extract(tree.Root()), nil
}

// Tree owns a parsed syntax tree. Nodes obtained from it are valid until
// Close is called.
type Tree struct {
	tree    *sitter.Tree
	source  []byte
	grammar *grammar
}

// Root returns the module node.
func (t *Tree) Root() outline.Node {
	return node{n: t.tree.RootNode(), t: t}
}

// HasError reports whether tree-sitter had to recover from syntax errors.
func (t *Tree) HasError() bool {
	return t.tree.RootNode().HasError()
}

// Close frees the tree.
func (t *Tree) Close() {
	t.tree.Close()
}

type node struct {
	n *sitter.Node
	t *Tree
}

func (x node) Kind() string {
	return x.t.grammar.kind(x.n.Kind())
}

func (x node) ChildCount() int {
	return int(x.n.ChildCount())
}

func (x node) Child(i int) outline.Node {
	if i < 0 || i >= x.ChildCount() {
		return nil
	}
	c := x.n.Child(uint(i))
	if c == nil {
		return nil
	}
	return node{n: x.t.grammar.unwrapped(c), t: x.t}
}

func (x node) Field(role string) (outline.Node, bool) {
	c := x.t.grammar.field(x.n, role)
	if c == nil {
		return nil, false
	}
	return node{n: c, t: x.t}, true
}

func (x node) Text() string {
	return x.n.Utf8Text(x.t.source)
}
