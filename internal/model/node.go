// # internal/model/node.go
package model

// Kind discriminates the documentable entity types held in a tree.
type Kind int

const (
	KindModule Kind = iota
	KindClass
	KindFunction
	KindVariable
	KindIndirection
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindIndirection:
		return "indirection"
	default:
		return "unknown"
	}
}

// KindFromString is the inverse of Kind.String. Returns -1 for unknown input.
func KindFromString(s string) Kind {
	switch s {
	case "module":
		return KindModule
	case "class":
		return KindClass
	case "function":
		return KindFunction
	case "variable":
		return KindVariable
	case "indirection":
		return KindIndirection
	default:
		return Kind(-1)
	}
}

// Location is an opaque source position. Filename may be empty for
// synthesized objects (e.g. indirections created by wildcard expansion).
type Location struct {
	Filename string
	Line     int
}

// Node is a documentable entity in the tree. Identity is by pointer, never
// by value: two nodes with identical content are still distinct nodes.
type Node interface {
	Name() string
	Kind() Kind
	Parent() Node
	Root() *TreeRoot
	Location() Location

	// QualifiedName is the dot-joined path from the tree root to this node.
	QualifiedName() string

	// Members returns the ordered children of the node, or nil for leaf
	// kinds (variables, indirections).
	Members() []Node

	// Module returns the module that contains this node (itself for modules).
	Module() *Module

	// Conditional reports whether the binding occurred inside one branch of
	// a mutually exclusive construct.
	Conditional() bool

	base() *NodeBase
}

// NodeBase carries the fields and navigation shared by every node kind.
type NodeBase struct {
	name   string
	loc    Location
	parent Node
	root   *TreeRoot
	self   Node // outermost value embedding this base

	// IsConditional marks a binding that occurs inside one branch of a
	// mutually exclusive construct (try/except, if/else). Bindings of the
	// same name across such branches are treated as alternatives rather
	// than plain shadowing.
	IsConditional bool

	// Docstring is the leading string literal of the definition body, with
	// surrounding quotes stripped. Empty when absent.
	Docstring string

	diags []Diagnostic
}

func initBase(self Node, b *NodeBase, name string, loc Location) {
	b.self = self
	b.name = name
	b.loc = loc
}

func (b *NodeBase) Name() string       { return b.name }
func (b *NodeBase) Parent() Node       { return b.parent }
func (b *NodeBase) Root() *TreeRoot    { return b.root }
func (b *NodeBase) Location() Location { return b.loc }
func (b *NodeBase) Members() []Node    { return nil }
func (b *NodeBase) Conditional() bool  { return b.IsConditional }
func (b *NodeBase) base() *NodeBase    { return b }

func (b *NodeBase) QualifiedName() string {
	if b.parent == nil {
		return b.name
	}
	return b.parent.QualifiedName() + "." + b.name
}

func (b *NodeBase) Module() *Module {
	if m, ok := b.self.(*Module); ok {
		return m
	}
	if b.parent == nil {
		return nil
	}
	return b.parent.Module()
}

// Scope returns the nearest enclosing namespace usable for name resolution:
// the node itself when it is a module, class or function, otherwise its
// parent's scope.
func (b *NodeBase) Scope() Node {
	switch b.self.(type) {
	case *Module, *Class, *Function:
		return b.self
	}
	if b.parent == nil {
		return nil
	}
	return b.parent.base().Scope()
}

// Warn records a diagnostic against this node and mirrors it on the root so
// all diagnostics stay queryable after the load.
func (b *NodeBase) Warn(code, message string) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Object:   b.QualifiedName(),
		Location: b.loc,
		Message:  message,
	}
	b.diags = append(b.diags, d)
	if b.root != nil {
		b.root.addDiagnostic(d)
	}
}

// Diagnostics returns the diagnostics recorded against this node.
func (b *NodeBase) Diagnostics() []Diagnostic { return b.diags }
