package outline

// Node is the view of a syntax tree node the extractor works with. Parser
// adapters implement it; the extractor never sees the underlying tree.
type Node interface {
	// Kind returns the node's kind tag, e.g. "class_definition".
	Kind() string
	ChildCount() int
	// Child returns the i-th child, or nil when i is out of range.
	Child(i int) Node
	// Field returns the child filling the named role ("name", "body",
	// "superclasses", "left"). ok is false when the role is absent.
	Field(role string) (child Node, ok bool)
	// Text returns the exact source slice covered by the node.
	Text() string
}

// Kind tags recognized by the extractor.
const (
	KindModule              = "module"
	KindClassDefinition     = "class_definition"
	KindFunctionDefinition  = "function_definition"
	KindAssignment          = "assignment"
	KindExpressionStatement = "expression_statement"
	KindIdentifier          = "identifier"
	KindAttribute           = "attribute"
	KindSubscript           = "subscript"
)

// Field roles.
const (
	FieldName         = "name"
	FieldBody         = "body"
	FieldSuperclasses = "superclasses"
	FieldLeft         = "left"
)

// Decl is the closed set of node shapes the extractor acts on.
type Decl int

const (
	DeclOther Decl = iota
	DeclClass
	DeclFunction
	DeclAssignment
	DeclExpressionStatement
)

func (d Decl) String() string {
	switch d {
	case DeclClass:
		return "class"
	case DeclFunction:
		return "function"
	case DeclAssignment:
		return "assignment"
	case DeclExpressionStatement:
		return "expression_statement"
	default:
		return "other"
	}
}

// Classify maps a kind tag onto Decl. Anything unrecognized is DeclOther.
func Classify(kind string) Decl {
	switch kind {
	case KindClassDefinition:
		return DeclClass
	case KindFunctionDefinition:
		return DeclFunction
	case KindAssignment:
		return DeclAssignment
	case KindExpressionStatement:
		return DeclExpressionStatement
	default:
		return DeclOther
	}
}

func isBaseKind(kind string) bool {
	return kind == KindIdentifier || kind == KindAttribute || kind == KindSubscript
}
