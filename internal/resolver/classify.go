// # internal/resolver/classify.go
package resolver

import (
	"strings"

	"pyspect/internal/model"
)

// classify derives the post-resolution facts that depend on decided slots:
// function decorator flags, property accessor grouping, subclass back-links,
// variable aliases and export flags.
func (r *Resolver) classify() {
	r.classifyFunctions()
	r.groupPropertyAccessors()
	r.linkSubclasses()
	r.markVariables()
}

func (r *Resolver) classifyFunctions() {
	r.walkAll(func(n model.Node) {
		fn, ok := n.(*model.Function)
		if !ok {
			return
		}
		for _, mod := range fn.Modifiers {
			if mod == "async" {
				fn.IsAsync = true
			}
		}
		for _, deco := range fn.Decorations {
			name := deco.Name.TargetName()
			switch {
			case name == "property" || strings.HasSuffix(name, ".property") ||
				strings.HasSuffix(name, "cached_property"):
				fn.IsProperty = true
			case name == "classmethod" || strings.HasSuffix(name, ".classmethod"):
				fn.IsClassMethod = true
			case name == "staticmethod" || strings.HasSuffix(name, ".staticmethod"):
				fn.IsStaticMethod = true
			case name == "overload" || strings.HasSuffix(name, ".overload"):
				fn.IsOverload = true
			}
		}
	})
}

// groupPropertyAccessors keeps the getter visible when setter or deleter
// definitions reuse the property's name. The accessor definitions stay in
// the registry as duplicates; the getter is promoted to the visible slot.
func (r *Resolver) groupPropertyAccessors() {
	r.walkAll(func(n model.Node) {
		fn, ok := n.(*model.Function)
		if !ok || !isPropertyAccessor(fn) {
			return
		}
		for _, dup := range r.root.LookupAll(fn.QualifiedName()) {
			if getter, ok := dup.(*model.Function); ok && getter.IsProperty {
				r.root.Index().Promote(fn.QualifiedName(), getter)
				return
			}
		}
	})
}

// isPropertyAccessor matches `@<name>.setter` and `@<name>.deleter`
// decorations where <name> is the function's own name.
func isPropertyAccessor(fn *model.Function) bool {
	for _, deco := range fn.Decorations {
		raw := deco.Name.Raw()
		if raw == fn.Name()+".setter" || raw == fn.Name()+".deleter" {
			return true
		}
	}
	return false
}

// linkSubclasses rebuilds the subclass back-links from resolved base edges.
// The lists are cleared first so the pass converges on repeated runs.
func (r *Resolver) linkSubclasses() {
	r.walkAll(func(n model.Node) {
		if c, ok := n.(*model.Class); ok {
			c.Subclasses = nil
		}
	})
	r.walkAll(func(n model.Node) {
		c, ok := n.(*model.Class)
		if !ok {
			return
		}
		for _, baseRef := range c.Bases {
			if base, ok := baseRef.Target().(*model.Class); ok {
				base.Subclasses = append(base.Subclasses, c)
			}
		}
	})
}

// markVariables sets export flags from the owning module's export set and
// records alias edges for variables whose value is a plain name that
// resolves inside the tree.
func (r *Resolver) markVariables() {
	for m := range r.root.AllModules() {
		exported := map[string]bool{}
		if m.Exports != nil {
			for _, name := range m.Exports.Names {
				exported[name] = true
			}
		}
		for _, member := range m.Members() {
			v, ok := member.(*model.Variable)
			if !ok {
				continue
			}
			v.Exported = exported[v.Name()]
			r.recordAlias(v)
		}
	}
}

func (r *Resolver) recordAlias(v *model.Variable) {
	if v.AliasOf != nil || !isPlainDottedName(v.Value) {
		return
	}
	out := r.resolveInScope(v.Scope(), v.Value, visitSet{})
	if out.node != nil && out.node != model.Node(v) {
		v.AliasOf = out.node
	}
}

func isPlainDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !alpha && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func (r *Resolver) walkAll(fn func(n model.Node)) {
	for m := range r.root.AllModules() {
		for _, member := range m.Members() {
			model.Walk(member, &pruneModules{fn: fn})
		}
	}
}

// pruneModules stops descent at nested modules so each module's subtree is
// visited exactly once across walkAll.
type pruneModules struct {
	fn func(n model.Node)
}

func (p *pruneModules) Enter(n model.Node) bool {
	if _, ok := n.(*model.Module); ok {
		return false
	}
	p.fn(n)
	return true
}

func (p *pruneModules) Leave(model.Node) {}
