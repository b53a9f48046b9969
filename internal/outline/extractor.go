// Package outline turns a syntax tree into a flat, indented list of the
// declarations it contains: classes with their bases, functions and methods,
// and module-level variable bindings.
package outline

import "strings"

const indentUnit = "    "

// Entry is one outline line before indentation is applied.
type Entry struct {
	Depth int
	Text  string
}

// String renders the entry with four spaces per depth level.
func (e Entry) String() string {
	return strings.Repeat(indentUnit, e.Depth) + e.Text
}

type frame struct {
	node  Node
	depth int
}

// Extract returns the rendered outline lines for the tree rooted at root.
func Extract(root Node) []string {
	entries := ExtractEntries(root)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

// ExtractEntries walks the tree in source order and returns one entry per
// recognized declaration. Nodes it does not recognize, and recognized nodes
// missing a required field, are left out. It never fails.
//
// Depth grows only through class bodies. Function bodies and the right-hand
// side of assignments are never visited.
func ExtractEntries(root Node) []Entry {
	if root == nil {
		return nil
	}

	var entries []Entry
	stack := pushChildren(nil, root, 0, func(d Decl) bool { return d != DeclOther })

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch Classify(f.node.Kind()) {
		case DeclClass:
			name, ok := fieldText(f.node, FieldName)
			if !ok {
				continue
			}
			entries = append(entries, Entry{
				Depth: f.depth,
				Text:  "class " + name + baseSuffix(f.node) + ":",
			})
			if body, ok := f.node.Field(FieldBody); ok {
				stack = pushChildren(stack, body, f.depth+1, isMember)
			}

		case DeclFunction:
			name, ok := fieldText(f.node, FieldName)
			if !ok {
				continue
			}
			entries = append(entries, Entry{Depth: f.depth, Text: "def " + name + "():"})

		case DeclAssignment:
			if f.depth != 0 {
				continue
			}
			left, ok := f.node.Field(FieldLeft)
			if !ok || left.Kind() != KindIdentifier {
				continue
			}
			entries = append(entries, Entry{Depth: f.depth, Text: left.Text() + " = ..."})

		case DeclExpressionStatement:
			if f.depth != 0 || f.node.ChildCount() == 0 {
				continue
			}
			first := f.node.Child(0)
			if first != nil && Classify(first.Kind()) == DeclAssignment {
				stack = append(stack, frame{node: first, depth: f.depth})
			}
		}
	}

	return entries
}

func isMember(d Decl) bool {
	return d == DeclClass || d == DeclFunction
}

// pushChildren pushes the accepted children of parent in reverse so that
// they pop in source order.
func pushChildren(stack []frame, parent Node, depth int, accept func(Decl) bool) []frame {
	for i := parent.ChildCount() - 1; i >= 0; i-- {
		child := parent.Child(i)
		if child == nil || !accept(Classify(child.Kind())) {
			continue
		}
		stack = append(stack, frame{node: child, depth: depth})
	}
	return stack
}

func fieldText(n Node, role string) (string, bool) {
	child, ok := n.Field(role)
	if !ok {
		return "", false
	}
	return child.Text(), true
}

// baseSuffix returns "(A, B)" for the identifier, attribute and subscript
// children of the superclasses list, or "" when there are none.
func baseSuffix(class Node) string {
	list, ok := class.Field(FieldSuperclasses)
	if !ok {
		return ""
	}

	var bases []string
	for i := 0; i < list.ChildCount(); i++ {
		child := list.Child(i)
		if child != nil && isBaseKind(child.Kind()) {
			bases = append(bases, child.Text())
		}
	}
	if len(bases) == 0 {
		return ""
	}
	return "(" + strings.Join(bases, ", ") + ")"
}
