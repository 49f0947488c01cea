// # internal/resolver/scope.go
package resolver

import (
	"strings"

	"pyspect/internal/model"
)

// outcome is the result of one name resolution: exactly one of node,
// external or reason is meaningful.
type outcome struct {
	node     model.Node
	external string
	reason   model.Reason
}

func (o outcome) failed() bool { return o.node == nil && o.external == "" }

// visitKey guards recursive resolution. A revisit of the same (scope, name)
// pair inside one resolution means a cycle.
type visitKey struct {
	scope string
	name  string
}

type visitSet map[visitKey]bool

// resolveInScope resolves a possibly dotted name from the given originating
// scope, applying Python's lookup order: innermost function locals,
// enclosing function scopes (class bodies are skipped once a function
// boundary has been crossed), class body, module scope including import
// bindings, then the builtins table.
func (r *Resolver) resolveInScope(scope model.Node, name string, vis visitSet) outcome {
	if scope == nil || name == "" {
		return outcome{reason: model.ReasonNotFound}
	}
	key := visitKey{scope: scope.QualifiedName(), name: name}
	if vis[key] {
		return outcome{reason: model.ReasonCyclic}
	}
	vis[key] = true
	defer delete(vis, key)

	parts := strings.Split(name, ".")
	head := parts[0]

	sawCyclicWildcard := false
	crossedFunction := false
	for s := scope; s != nil; s = s.Parent() {
		switch sc := s.(type) {
		case *model.Function:
			if sc.BindsLocally(head) {
				// Bound by a parameter or body assignment: the lookup
				// stops here, but locals are not documentable nodes.
				return outcome{reason: model.ReasonLocalBinding}
			}
			crossedFunction = true

		case *model.Class:
			// Python skips enclosing class bodies when resolving names
			// inside a nested function.
			if crossedFunction {
				continue
			}
			if out, ok := r.lookupMember(s, head, parts[1:], vis); ok {
				return out
			}

		case *model.Module:
			if out, ok := r.lookupMember(s, head, parts[1:], vis); ok {
				return out
			}
			if moduleHasCyclicWildcard(sc) {
				sawCyclicWildcard = true
			}
			// Module scope is the outermost namespace: enclosing packages
			// are not consulted.
			s = nil
		}
		if s == nil {
			break
		}
	}

	if pythonBuiltins[head] {
		return outcome{external: "builtins." + name}
	}
	if sawCyclicWildcard {
		// The name may have been provided by an unexpandable cyclic
		// wildcard import; stay honest about why it is missing.
		return outcome{reason: model.ReasonCyclic}
	}
	return outcome{reason: model.ReasonNotFound}
}

// resolveAbsolute resolves a dotted name anchored at the collection root,
// as used by import indirection targets. Heads unknown to the collection
// are external by definition.
func (r *Resolver) resolveAbsolute(name string, vis visitSet) outcome {
	parts := strings.Split(name, ".")

	// Longest-prefix match lets targets like pkg.sub.Class anchor at the
	// deepest registered module.
	for i := len(parts); i >= 1; i-- {
		prefix := strings.Join(parts[:i], ".")
		if node := r.pickBinding(prefix, vis); node != nil {
			return r.descend(node, parts[i:], vis)
		}
	}
	return outcome{external: name}
}

// lookupMember looks head up among the direct bindings of scope s and, on a
// hit, descends through the remaining dotted parts. The boolean reports
// whether head was bound in s at all.
func (r *Resolver) lookupMember(s model.Node, head string, rest []string, vis visitSet) (outcome, bool) {
	binding := r.pickBinding(s.QualifiedName()+"."+head, vis)
	if binding == nil {
		return outcome{}, false
	}
	out := r.descend(binding, rest, vis)
	return out, true
}

// descend walks the remaining dotted parts from cur, following import
// indirections and, for classes, falling back to base-class members.
func (r *Resolver) descend(cur model.Node, parts []string, vis visitSet) outcome {
	for {
		if ind, ok := cur.(*model.Indirection); ok {
			out := r.followIndirection(ind, vis)
			if out.node == nil {
				if out.external != "" && len(parts) > 0 {
					out.external += "." + strings.Join(parts, ".")
				}
				if out.failed() && out.reason == model.ReasonNotFound && ind.Conditional() {
					// The binding only exists in some branch and its target
					// does not resolve: which branch applies is unknowable.
					out.reason = model.ReasonAmbiguousConditional
				}
				return out
			}
			cur = out.node
			continue
		}
		if len(parts) == 0 {
			return outcome{node: cur}
		}

		part := parts[0]
		var member model.Node
		switch owner := cur.(type) {
		case *model.Module:
			member = r.pickBinding(owner.QualifiedName()+"."+part, vis)
			if member == nil && moduleHasCyclicWildcard(owner) {
				return outcome{reason: model.ReasonCyclic}
			}
		case *model.Class:
			member = r.pickBinding(owner.QualifiedName()+"."+part, vis)
			if member == nil {
				member = r.baseMember(owner, part, vis)
			}
		default:
			return outcome{reason: model.ReasonNotFound}
		}
		if member == nil {
			return outcome{reason: model.ReasonNotFound}
		}
		cur = member
		parts = parts[1:]
	}
}

// followIndirection resolves the dotted target of an import binding.
func (r *Resolver) followIndirection(ind *model.Indirection, vis visitSet) outcome {
	key := visitKey{scope: ind.QualifiedName(), name: ind.Target}
	if vis[key] {
		return outcome{reason: model.ReasonCyclic}
	}
	vis[key] = true
	defer delete(vis, key)

	return r.resolveAbsolute(ind.Target, vis)
}

// baseMember searches a member through the class's base edges, in declared
// base order. The slot decisions are never consulted: during the parallel
// slot pass a base slot may be mid-decision in another module's worker, so
// lookup always goes through the raw expression, which names the same
// target.
func (r *Resolver) baseMember(c *model.Class, name string, vis visitSet) model.Node {
	for _, baseRef := range c.Bases {
		out := r.resolveInScope(baseRef.Scope(), baseRef.Raw(), vis)
		baseClass, ok := out.node.(*model.Class)
		if !ok {
			continue
		}
		key := visitKey{scope: baseClass.QualifiedName(), name: name}
		if vis[key] {
			continue
		}
		vis[key] = true
		member := r.pickBinding(baseClass.QualifiedName()+"."+name, vis)
		if member == nil {
			member = r.baseMember(baseClass, name, vis)
		}
		delete(vis, key)
		if member != nil {
			return member
		}
	}
	return nil
}

// pickBinding selects the effective binding among all objects registered
// under a qualified name. Plain duplicates follow shadowing order (the
// visible entry wins); bindings marked conditional are alternatives, and
// the first alternative whose own target resolves wins, falling back to
// the last.
func (r *Resolver) pickBinding(qualifiedName string, vis visitSet) model.Node {
	bindings := r.root.LookupAll(qualifiedName)
	switch len(bindings) {
	case 0:
		return nil
	case 1:
		return bindings[0]
	}

	conditional := false
	for _, b := range bindings {
		if b.Conditional() {
			conditional = true
			break
		}
	}
	if !conditional {
		return bindings[len(bindings)-1]
	}

	// Alternatives are evaluated in textual order, not shadowing order.
	ordered := orderByLine(bindings)
	chosen := ordered[len(ordered)-1]
	for _, b := range ordered {
		if r.alternativeResolves(b, vis) {
			chosen = b
			break
		}
	}
	r.recordConditionalChoice(qualifiedName, chosen)
	return chosen
}

func (r *Resolver) alternativeResolves(b model.Node, vis visitSet) bool {
	ind, ok := b.(*model.Indirection)
	if !ok {
		// Non-import bindings have no further target to verify.
		return true
	}
	out := r.followIndirection(ind, vis)
	return out.node != nil || out.external != ""
}

func orderByLine(bindings []model.Node) []model.Node {
	ordered := make([]model.Node, len(bindings))
	copy(ordered, bindings)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].Location().Line > ordered[j].Location().Line; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return ordered
}

func moduleHasCyclicWildcard(m *model.Module) bool {
	for _, wc := range m.Wildcards {
		if wc.Cyclic {
			return true
		}
	}
	return false
}
