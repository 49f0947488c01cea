// # internal/model/ref.go
package model

// RefState is the tri-state of a reference slot.
type RefState int

const (
	// RefUnresolved is the initial state of every slot, and the terminal
	// state of references that could not be resolved.
	RefUnresolved RefState = iota
	// RefResolved points at another node of the same tree.
	RefResolved
	// RefExternal names an object outside the loaded collection.
	RefExternal
)

func (s RefState) String() string {
	switch s {
	case RefResolved:
		return "resolved"
	case RefExternal:
		return "external"
	default:
		return "unresolved"
	}
}

// Reason codes for slots left unresolved.
type Reason string

const (
	ReasonNotFound             Reason = "not-found"
	ReasonCyclic               Reason = "cyclic"
	ReasonAmbiguousConditional Reason = "ambiguous-conditional"
	ReasonNonLiteralAll        Reason = "non-literal-all"
	// ReasonLocalBinding: the name is bound by an enclosing function's
	// parameters or locals. The lookup succeeded but local bindings are not
	// documentable nodes, so the slot has zero candidates.
	ReasonLocalBinding Reason = "local-binding"
)

// Ref is a mutable tri-state reference slot. It is created Unresolved during
// ingestion and decided at most once by the resolver: once a slot carries a
// decision it never changes within the same load.
type Ref struct {
	raw   string
	scope Node

	state    RefState
	target   Node
	external string
	reason   Reason
	decided  bool
}

// NewRef creates an unresolved slot for the raw expression text, bound to
// the scope in which the expression occurred.
func NewRef(raw string, scope Node) *Ref {
	return &Ref{raw: raw, scope: scope}
}

func (r *Ref) Raw() string      { return r.raw }
func (r *Ref) Scope() Node      { return r.scope }
func (r *Ref) State() RefState  { return r.state }
func (r *Ref) Target() Node     { return r.target }
func (r *Ref) External() string { return r.external }
func (r *Ref) Reason() Reason   { return r.reason }

// Decided reports whether a resolution pass has already made a call on this
// slot, including a terminal Unresolved decision.
func (r *Ref) Decided() bool { return r.decided }

// Resolve marks the slot resolved to target. Returns false if the slot was
// already decided; the earlier decision is kept.
func (r *Ref) Resolve(target Node) bool {
	if r.decided {
		return false
	}
	r.state = RefResolved
	r.target = target
	r.decided = true
	return true
}

// MarkExternal marks the slot as naming an object outside the collection.
func (r *Ref) MarkExternal(dotted string) bool {
	if r.decided {
		return false
	}
	r.state = RefExternal
	r.external = dotted
	r.decided = true
	return true
}

// MarkUnresolved records a terminal unresolved decision with a reason code.
func (r *Ref) MarkUnresolved(reason Reason) bool {
	if r.decided {
		return false
	}
	r.state = RefUnresolved
	r.reason = reason
	r.decided = true
	return true
}

// TargetName gives the dotted name the slot points at: the qualified name
// of the target when resolved, the external dotted name, or the raw text.
func (r *Ref) TargetName() string {
	switch r.state {
	case RefResolved:
		return r.target.QualifiedName()
	case RefExternal:
		return r.external
	default:
		return r.raw
	}
}

// RestoreResolved rebuilds a decided slot from interchange data. The target
// is looked up by qualified name in root; a stale name degrades to a
// terminal not-found decision so round-tripping never fabricates edges.
func (r *Ref) RestoreResolved(root *TreeRoot, qname string) {
	if r.decided {
		return
	}
	if target := root.Lookup(qname); target != nil {
		r.Resolve(target)
		return
	}
	r.MarkUnresolved(ReasonNotFound)
}
