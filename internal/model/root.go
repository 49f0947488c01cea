// # internal/model/root.go
package model

import (
	"fmt"
	"iter"

	"github.com/google/uuid"
)

// DuplicateModuleError is returned when two modules register under the same
// dotted name without an allowed stub relationship. The load continues for
// other modules.
type DuplicateModuleError struct {
	Name string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("duplicate module name: %q", e.Name)
}

// TreeRoot owns one loaded collection: the registration-ordered module list
// and the qualified-name index over every object. Multiple independent
// roots can coexist; nothing here is process-global.
type TreeRoot struct {
	// LoadID identifies this load in logs, diagnostics and the symbol store.
	LoadID string

	rootModules []*Module
	allModules  []*Module // registration order, nested modules included
	objects     *SymbolIndex
	diags       []Diagnostic

	// AllowStubs permits re-registering a module name when the newcomer is
	// an intentional re-export stub (a module whose only members are
	// indirections). The stub is discarded in favor of the original.
	AllowStubs bool
}

func NewTreeRoot() *TreeRoot {
	return &TreeRoot{
		LoadID:  uuid.NewString(),
		objects: NewSymbolIndex(),
	}
}

// RegisterModule inserts a module into the collection, keyed by its dotted
// name. parent is nil for root modules.
func (r *TreeRoot) RegisterModule(m *Module, parent *Module) error {
	if existing := r.objects.Get(moduleKeyFor(m, parent)); existing != nil {
		if _, ok := existing.(*Module); ok {
			if r.AllowStubs && isReexportStub(m) {
				// Stub tolerated, original kept.
				return nil
			}
			return &DuplicateModuleError{Name: moduleKeyFor(m, parent)}
		}
	}
	if parent == nil {
		r.AddObject(m, nil)
		r.rootModules = append(r.rootModules, m)
	} else {
		r.AddObject(m, parent)
	}
	r.allModules = append(r.allModules, m)
	return nil
}

func moduleKeyFor(m *Module, parent *Module) string {
	if parent == nil {
		return m.Name()
	}
	return parent.QualifiedName() + "." + m.Name()
}

func isReexportStub(m *Module) bool {
	if len(m.members) == 0 {
		return false
	}
	for _, member := range m.members {
		if member.Kind() != KindIndirection {
			return false
		}
	}
	return true
}

// AddObject attaches a newly created object under parent and indexes it,
// recursively indexing members the object already carries. A nil parent is
// only valid for modules.
func (r *TreeRoot) AddObject(ob Node, parent Node) {
	b := ob.base()
	if parent != nil {
		pb := parent.base()
		switch p := parent.(type) {
		case *Module:
			if !containsNode(p.members, ob) {
				p.members = append(p.members, ob)
			}
		case *Class:
			if !containsNode(p.members, ob) {
				p.members = append(p.members, ob)
			}
		case *Function:
			if !containsNode(p.members, ob) {
				p.members = append(p.members, ob)
			}
		default:
			panic(fmt.Sprintf("cannot add %q inside %s %q",
				ob.Name(), parent.Kind(), pb.QualifiedName()))
		}
		b.parent = parent
	}
	b.root = r

	// A name defined later in the source wins visibility over an earlier
	// duplicate; objects restored from interchange keep insertion order.
	shadow := true
	if parent != nil {
		if prior := r.objects.Get(b.QualifiedName()); prior != nil && prior != ob {
			shadow = prior.Location().Line <= ob.Location().Line
		}
	}
	r.objects.Add(b.QualifiedName(), ob, shadow)

	for _, member := range ob.Members() {
		r.AddObject(member, ob)
	}
}

func containsNode(nodes []Node, n Node) bool {
	for _, existing := range nodes {
		if existing == n {
			return true
		}
	}
	return false
}

// Lookup finds the visible object with the exact qualified name, or nil.
func (r *TreeRoot) Lookup(qualifiedName string) Node {
	return r.objects.Get(qualifiedName)
}

// LookupAll returns every object registered under the qualified name,
// shadowed entries first.
func (r *TreeRoot) LookupAll(qualifiedName string) []Node {
	return r.objects.GetAll(qualifiedName)
}

// Index exposes the symbol index for passes that need duplicate-aware
// access (resolver, persistence).
func (r *TreeRoot) Index() *SymbolIndex { return r.objects }

// RootModules returns the top-level modules in registration order.
func (r *TreeRoot) RootModules() []*Module { return r.rootModules }

// AllModules iterates every module of the collection, nested ones included,
// in registration order. The sequence is restartable.
func (r *TreeRoot) AllModules() iter.Seq[*Module] {
	return func(yield func(*Module) bool) {
		for _, m := range r.allModules {
			if !yield(m) {
				return
			}
		}
	}
}

// ModuleCount reports how many modules are registered.
func (r *TreeRoot) ModuleCount() int { return len(r.allModules) }

// ObjectCount reports how many distinct qualified names are indexed.
func (r *TreeRoot) ObjectCount() int { return r.objects.Len() }

func (r *TreeRoot) addDiagnostic(d Diagnostic) {
	r.diags = append(r.diags, d)
}

// AddDiagnostic records a collection-level diagnostic not attached to a
// specific node.
func (r *TreeRoot) AddDiagnostic(d Diagnostic) { r.addDiagnostic(d) }

// Diagnostics returns everything recorded during ingest and resolution.
func (r *TreeRoot) Diagnostics() []Diagnostic { return r.diags }
