// # internal/resolver/resolver.go
// Package resolver decides every reference slot of a loaded tree: wildcard
// imports are expanded, export sets computed, dotted names resolved against
// Python's scoping rules and classification flags derived from decorators.
package resolver

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"pyspect/internal/model"
)

type Resolver struct {
	root    *model.TreeRoot
	workers int

	mu       sync.Mutex
	condSeen map[string]bool
	pending  []model.Diagnostic
}

type Option func(*Resolver)

// WithWorkers bounds the parallelism of the slot resolution pass.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

func New(root *model.TreeRoot, opts ...Option) *Resolver {
	r := &Resolver{
		root:     root,
		workers:  runtime.NumCPU(),
		condSeen: map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the resolution passes in order: wildcard expansion, export
// computation, slot resolution and classification. Slots are decided at
// most once, so running Run again over the same tree changes nothing.
func (r *Resolver) Run(ctx context.Context) error {
	r.expandWildcards()
	r.computeExports()
	if err := r.resolveSlots(ctx); err != nil {
		return err
	}
	r.classify()
	r.flushDiagnostics()
	return nil
}

// ResolveName resolves a dotted name as seen from the given scope. It
// returns the target node for in-tree hits, the dotted external name for
// names leaving the collection, or the reason the lookup failed.
func (r *Resolver) ResolveName(scope model.Node, name string) (model.Node, string, model.Reason) {
	out := r.resolveInScope(scope, name, visitSet{})
	r.flushDiagnostics()
	if out.failed() {
		return nil, "", failureReason(out)
	}
	return out.node, out.external, ""
}

// resolveSlots decides the reference slots of every module. Modules are
// processed in parallel: each module's slots have a single writer, and the
// tree structure is read-only during this pass.
func (r *Resolver) resolveSlots(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for m := range r.root.AllModules() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.resolveModuleSlots(m)
			return nil
		})
	}
	return g.Wait()
}

func (r *Resolver) resolveModuleSlots(m *model.Module) {
	for _, member := range m.Members() {
		model.Walk(member, &slotVisitor{r: r})
	}
}

// slotVisitor prunes at nested modules: those have their own pass, and two
// passes must never write the same slot.
type slotVisitor struct {
	r *Resolver
}

func (v *slotVisitor) Enter(n model.Node) bool {
	if _, ok := n.(*model.Module); ok {
		return false
	}
	for _, slot := range nodeSlots(n) {
		v.r.decideSlot(slot)
	}
	return true
}

func (v *slotVisitor) Leave(model.Node) {}

// nodeSlots lists the undecided reference slots a node carries.
func nodeSlots(n model.Node) []*model.Ref {
	var slots []*model.Ref
	add := func(ref *model.Ref) {
		if ref != nil && !ref.Decided() {
			slots = append(slots, ref)
		}
	}
	switch ob := n.(type) {
	case *model.Class:
		for _, b := range ob.Bases {
			add(b)
		}
		add(ob.Metaclass)
		for _, d := range ob.Decorations {
			add(d.Name)
		}
	case *model.Function:
		for _, d := range ob.Decorations {
			add(d.Name)
		}
		add(ob.ReturnType)
		for _, a := range ob.Args {
			add(a.Datatype)
		}
	case *model.Variable:
		add(ob.Datatype)
	}
	return slots
}

func (r *Resolver) decideSlot(ref *model.Ref) {
	out := r.resolveInScope(ref.Scope(), ref.Raw(), visitSet{})
	switch {
	case out.node != nil:
		ref.Resolve(out.node)
	case out.external != "":
		ref.MarkExternal(out.external)
	default:
		ref.MarkUnresolved(failureReason(out))
	}
}

func failureReason(out outcome) model.Reason {
	if out.reason == "" {
		return model.ReasonNotFound
	}
	return out.reason
}

// recordConditionalChoice notes, once per name per run, which alternative of
// a conditionally redefined binding was picked.
func (r *Resolver) recordConditionalChoice(qualifiedName string, chosen model.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.condSeen[qualifiedName] {
		return
	}
	r.condSeen[qualifiedName] = true
	r.pending = append(r.pending, model.Diagnostic{
		Severity: model.SeverityInfo,
		Code:     model.DiagConditionalChoice,
		Object:   qualifiedName,
		Location: chosen.Location(),
		Message: fmt.Sprintf("%s is bound in several exclusive branches; using the definition at line %d",
			qualifiedName, chosen.Location().Line),
	})
}

// flushDiagnostics moves diagnostics collected during the parallel pass onto
// the root in a deterministic order.
func (r *Resolver) flushDiagnostics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.pending, func(i, j int) bool {
		if r.pending[i].Object != r.pending[j].Object {
			return r.pending[i].Object < r.pending[j].Object
		}
		return r.pending[i].Message < r.pending[j].Message
	})
	for _, d := range r.pending {
		r.root.AddDiagnostic(d)
	}
	r.pending = nil
}
