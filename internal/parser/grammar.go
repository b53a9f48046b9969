package parser

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"outline/internal/outline"
)

// resolver finds the node filling a role when the grammar does not expose
// it as a plain field of the same name.
type resolver func(n *sitter.Node) *sitter.Node

// grammar describes how one tree-sitter grammar maps onto the node shapes
// the outline extractor understands. Python needs no translation; the
// others rename kinds and reach through wrapper nodes.
type grammar struct {
	lang     Language
	language func() *sitter.Language
	// kinds maps native kind tags to outline kind tags.
	kinds map[string]string
	// fields overrides role lookup per native kind.
	fields map[string]map[string]resolver
	// unwrap replaces a wrapper child with the node in the named field, so
	// "export class A {}" reads as the class itself.
	unwrap map[string]string
}

func (g *grammar) kind(native string) string {
	if k, ok := g.kinds[native]; ok {
		return k
	}
	return native
}

func (g *grammar) field(n *sitter.Node, role string) *sitter.Node {
	if r, ok := g.fields[n.Kind()][role]; ok {
		return r(n)
	}
	return n.ChildByFieldName(role)
}

func (g *grammar) unwrapped(n *sitter.Node) *sitter.Node {
	if f, ok := g.unwrap[n.Kind()]; ok {
		if inner := n.ChildByFieldName(f); inner != nil {
			return inner
		}
	}
	return n
}

var exportUnwrap = map[string]string{"export_statement": "declaration"}

var grammars = map[Language]*grammar{
	LanguagePython: {
		lang: LanguagePython,
		language: sync.OnceValue(func() *sitter.Language {
			return sitter.NewLanguage(python.Language())
		}),
	},

	LanguageJavaScript: {
		lang: LanguageJavaScript,
		language: sync.OnceValue(func() *sitter.Language {
			return sitter.NewLanguage(javascript.Language())
		}),
		kinds: map[string]string{
			"program":                        outline.KindModule,
			"class_declaration":              outline.KindClassDefinition,
			"function_declaration":           outline.KindFunctionDefinition,
			"generator_function_declaration": outline.KindFunctionDefinition,
			"method_definition":              outline.KindFunctionDefinition,
			"lexical_declaration":            outline.KindAssignment,
			"variable_declaration":           outline.KindAssignment,
			"assignment_expression":          outline.KindAssignment,
			"member_expression":              outline.KindAttribute,
			"subscript_expression":           outline.KindSubscript,
		},
		fields: map[string]map[string]resolver{
			"class_declaration": {
				outline.FieldSuperclasses: childOfKind("class_heritage"),
			},
			"lexical_declaration": {
				outline.FieldLeft: then(childOfKind("variable_declarator"), fieldNamed("name")),
			},
			"variable_declaration": {
				outline.FieldLeft: then(childOfKind("variable_declarator"), fieldNamed("name")),
			},
		},
		unwrap: exportUnwrap,
	},

	LanguageTypeScript: {
		lang: LanguageTypeScript,
		language: sync.OnceValue(func() *sitter.Language {
			return sitter.NewLanguage(typescript.LanguageTypescript())
		}),
		kinds: map[string]string{
			"program":                        outline.KindModule,
			"class_declaration":              outline.KindClassDefinition,
			"abstract_class_declaration":     outline.KindClassDefinition,
			"function_declaration":           outline.KindFunctionDefinition,
			"generator_function_declaration": outline.KindFunctionDefinition,
			"method_definition":              outline.KindFunctionDefinition,
			"lexical_declaration":            outline.KindAssignment,
			"variable_declaration":           outline.KindAssignment,
			"assignment_expression":          outline.KindAssignment,
			"member_expression":              outline.KindAttribute,
			"subscript_expression":           outline.KindSubscript,
		},
		fields: map[string]map[string]resolver{
			"class_declaration": {
				outline.FieldSuperclasses: childOfKind("extends_clause"),
			},
			"abstract_class_declaration": {
				outline.FieldSuperclasses: childOfKind("extends_clause"),
			},
			"lexical_declaration": {
				outline.FieldLeft: then(childOfKind("variable_declarator"), fieldNamed("name")),
			},
			"variable_declaration": {
				outline.FieldLeft: then(childOfKind("variable_declarator"), fieldNamed("name")),
			},
		},
		unwrap: exportUnwrap,
	},

	LanguageGo: {
		lang: LanguageGo,
		language: sync.OnceValue(func() *sitter.Language {
			return sitter.NewLanguage(golang.Language())
		}),
		kinds: map[string]string{
			"source_file":          outline.KindModule,
			"type_declaration":     outline.KindClassDefinition,
			"function_declaration": outline.KindFunctionDefinition,
			"method_declaration":   outline.KindFunctionDefinition,
			"var_declaration":      outline.KindAssignment,
			"const_declaration":    outline.KindAssignment,
		},
		fields: map[string]map[string]resolver{
			"type_declaration": {
				outline.FieldName: then(childOfKind("type_spec", "type_alias"), fieldNamed("name")),
			},
			"var_declaration": {
				outline.FieldLeft: then(childOfKind("var_spec"), fieldNamed("name")),
			},
			"const_declaration": {
				outline.FieldLeft: then(childOfKind("const_spec"), fieldNamed("name")),
			},
		},
	},
}

// childOfKind returns the first child of one of the given kinds, looking
// one level further down when the children are wrapped in a list node.
func childOfKind(kinds ...string) resolver {
	match := func(k string) bool {
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
	return func(n *sitter.Node) *sitter.Node {
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			if c := n.Child(i); c != nil && match(c.Kind()) {
				return c
			}
		}
		for i := uint(0); i < count; i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			for j := uint(0); j < c.ChildCount(); j++ {
				if gc := c.Child(j); gc != nil && match(gc.Kind()) {
					return gc
				}
			}
		}
		return nil
	}
}

func fieldNamed(name string) resolver {
	return func(n *sitter.Node) *sitter.Node {
		return n.ChildByFieldName(name)
	}
}

func then(steps ...resolver) resolver {
	return func(n *sitter.Node) *sitter.Node {
		for _, step := range steps {
			if n == nil {
				return nil
			}
			n = step(n)
		}
		return n
	}
}
