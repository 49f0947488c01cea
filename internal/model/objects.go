// # internal/model/objects.go
package model

// ExportDecl captures the statically recoverable shape of a module's
// __all__ declaration. Append/extend/augmented mutations are flattened into
// Names in program order by the ingester. NonLiteral is set when any part of
// the declaration could not be evaluated statically.
type ExportDecl struct {
	Names      []string
	NonLiteral bool
	Location   Location
}

// ExportPolicy states how a module's export set was derived.
type ExportPolicy int

const (
	// ExportImplicit: no __all__ declared, public top-level names exported.
	ExportImplicit ExportPolicy = iota
	// ExportDeclared: __all__ declared as a literal sequence.
	ExportDeclared
	// ExportDegraded: __all__ declared but not statically evaluable;
	// implicit policy applied with a recorded caveat.
	ExportDegraded
)

// ExportSet is a module's resolved export list, populated by the resolver.
type ExportSet struct {
	Policy ExportPolicy
	Names  []string
	// Missing lists declared names with no matching binding. They are
	// flagged, not dropped: they stay in Names in declaration order.
	Missing []string
}

// WildcardImport records a `from <target> import *` statement. Expansion
// into indirections happens during resolution, once the target module's
// export set is known.
type WildcardImport struct {
	TargetRaw     string
	Location      Location
	IsConditional bool

	// Expanded is set by the resolver once the wildcard has been processed,
	// successfully or not.
	Expanded bool
	// Cyclic is set when the wildcard takes part in an import cycle and
	// could not be expanded.
	Cyclic bool
}

// Module is a named container of top-level objects.
type Module struct {
	NodeBase
	members []Node

	IsPackage  bool
	SourcePath string

	// AllDecl is nil when the module declares no __all__.
	AllDecl *ExportDecl

	// Wildcards lists the module's `import *` statements in program order.
	Wildcards []*WildcardImport

	// Exports is populated by the resolver.
	Exports *ExportSet
}

func NewModule(name string, loc Location) *Module {
	m := &Module{}
	initBase(m, &m.NodeBase, name, loc)
	return m
}

func (m *Module) Kind() Kind      { return KindModule }
func (m *Module) Members() []Node { return m.members }

// MROEntry is one element of a class linearization. Exactly one field is
// set: Class for resolved ancestors, External or Raw for opaque terminal
// entries carried over from non-resolved base slots.
type MROEntry struct {
	Class    *Class
	External string
	Raw      string
}

// Class is a class definition with ordered base-class slots.
type Class struct {
	NodeBase
	members []Node

	Bases       []*Ref
	Metaclass   *Ref
	Decorations []*Decoration

	// Subclasses is populated by the resolver from resolved base edges.
	Subclasses []*Class

	// Linearization is the cached ancestor order computed by the MRO
	// resolver. Nil until populated; recomputed on every load.
	Linearization []MROEntry
}

func NewClass(name string, loc Location) *Class {
	c := &Class{}
	initBase(c, &c.NodeBase, name, loc)
	return c
}

func (c *Class) Kind() Kind      { return KindClass }
func (c *Class) Members() []Node { return c.members }

// Member returns the last-registered direct member with the given name,
// or nil. Inherited members are found through the MRO resolver instead.
func (c *Class) Member(name string) Node {
	if c.root == nil {
		return nil
	}
	return c.root.Lookup(c.QualifiedName() + "." + name)
}

// ArgKind mirrors Python's parameter kinds.
type ArgKind int

const (
	ArgPositional ArgKind = iota
	ArgKeywordOnly
	ArgVarPositional
	ArgVarKeyword
)

func (k ArgKind) String() string {
	switch k {
	case ArgPositional:
		return "positional"
	case ArgKeywordOnly:
		return "keyword-only"
	case ArgVarPositional:
		return "var-positional"
	case ArgVarKeyword:
		return "var-keyword"
	default:
		return "unknown"
	}
}

// Argument is one parameter of a function. Arguments are owned by their
// function and are not tree nodes themselves.
type Argument struct {
	Name       string
	Kind       ArgKind
	Datatype   *Ref // nil without annotation
	HasDefault bool
}

// Decoration is a decorator applied to a class or function. Arguments stay
// opaque raw text: only the decorator name expression is resolved.
type Decoration struct {
	Name     *Ref
	Args     string
	Location Location
}

// Function is a function or method definition. Nested functions are kept as
// members because Python's closure scoping walks through them.
type Function struct {
	NodeBase
	members []Node

	Args        []*Argument
	ReturnType  *Ref // nil without annotation
	Decorations []*Decoration
	Modifiers   []string

	// Locals are the names bound inside the body (assignments, for targets,
	// with-as, except-as). Parameters are tracked separately in Args. Local
	// bindings participate in scope lookup but are not documentable nodes.
	Locals []string

	// Classification flags derived from decorations by the resolver.
	IsProperty     bool
	IsClassMethod  bool
	IsStaticMethod bool
	IsOverload     bool
	IsAsync        bool
}

func NewFunction(name string, loc Location) *Function {
	f := &Function{}
	initBase(f, &f.NodeBase, name, loc)
	return f
}

func (f *Function) Kind() Kind      { return KindFunction }
func (f *Function) Members() []Node { return f.members }

// BindsLocally reports whether name is bound by the function's parameters
// or body assignments.
func (f *Function) BindsLocally(name string) bool {
	for _, a := range f.Args {
		if a.Name == name {
			return true
		}
	}
	for _, l := range f.Locals {
		if l == name {
			return true
		}
	}
	return false
}

// Variable is a module- or class-level assignment.
type Variable struct {
	NodeBase

	Datatype *Ref   // nil without annotation
	Value    string // literal value summary, raw text

	// Exported is set by the resolver when the name appears in the owning
	// module's export set.
	Exported bool

	// Aliases of this variable's target: populated by the resolver when the
	// value is itself a plain name that resolves in the tree.
	AliasOf Node
}

func NewVariable(name string, loc Location) *Variable {
	v := &Variable{}
	initBase(v, &v.NodeBase, name, loc)
	return v
}

func (v *Variable) Kind() Kind { return KindVariable }

// Indirection is an imported name: a local binding whose definition lives
// elsewhere. Target is the dotted name of the imported object.
type Indirection struct {
	NodeBase
	Target string
}

func NewIndirection(name string, loc Location, target string) *Indirection {
	i := &Indirection{Target: target}
	initBase(i, &i.NodeBase, name, loc)
	return i
}

func (i *Indirection) Kind() Kind { return KindIndirection }
