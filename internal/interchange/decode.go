// # internal/interchange/decode.go
package interchange

import (
	"encoding/json"
	"fmt"
	"io"

	"pyspect/internal/model"
)

// Decode rebuilds a tree from its interchange document. The build runs in
// two phases: first the full structure is registered, then slot decisions
// and alias edges are restored, so forward references inside the document
// need no ordering.
func Decode(r io.Reader) (*model.TreeRoot, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return FromDocument(&doc)
}

func FromDocument(doc *Document) (*model.TreeRoot, error) {
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", doc.Version)
	}

	root := model.NewTreeRoot()
	if doc.LoadID != "" {
		root.LoadID = doc.LoadID
	}

	d := &decoder{root: root}
	for _, rec := range doc.Modules {
		if rec.Kind != model.KindModule.String() {
			return nil, fmt.Errorf("top-level record %q is a %s, not a module", rec.Name, rec.Kind)
		}
		if _, err := d.buildModule(rec, nil); err != nil {
			return nil, err
		}
	}
	d.restore()

	for _, dr := range doc.Diagnostics {
		root.AddDiagnostic(model.Diagnostic{
			Severity: severityFromString(dr.Severity),
			Code:     dr.Code,
			Object:   dr.Object,
			Location: model.Location{Filename: dr.File, Line: dr.Line},
			Message:  dr.Message,
		})
	}
	return root, nil
}

type decoder struct {
	root *model.TreeRoot

	// deferred restores run once the whole structure exists.
	slotFixes  []func()
	aliasFixes []func()
}

func (d *decoder) buildModule(rec *Record, parent *model.Module) (*model.Module, error) {
	m := model.NewModule(rec.Name, model.Location{Filename: rec.File, Line: rec.Line})
	m.IsConditional = rec.Conditional
	m.Docstring = rec.Docstring
	m.IsPackage = rec.IsPackage
	m.SourcePath = rec.SourcePath
	if rec.All != nil {
		m.AllDecl = &model.ExportDecl{
			Names:      rec.All.Names,
			NonLiteral: rec.All.NonLiteral,
			Location:   model.Location{Filename: rec.File, Line: rec.All.Line},
		}
	}
	for _, wc := range rec.Wildcards {
		m.Wildcards = append(m.Wildcards, &model.WildcardImport{
			TargetRaw:     wc.Target,
			Location:      model.Location{Filename: rec.File, Line: wc.Line},
			IsConditional: wc.Conditional,
			Expanded:      wc.Expanded,
			Cyclic:        wc.Cyclic,
		})
	}
	if rec.Exports != nil {
		m.Exports = &model.ExportSet{
			Policy:  policyFromString(rec.Exports.Policy),
			Names:   rec.Exports.Names,
			Missing: rec.Exports.Missing,
		}
	}
	if err := d.root.RegisterModule(m, parent); err != nil {
		return nil, err
	}
	return m, d.buildMembers(rec, m)
}

func (d *decoder) buildMembers(rec *Record, owner model.Node) error {
	for _, member := range rec.Members {
		if err := d.buildNode(member, owner); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) buildNode(rec *Record, owner model.Node) error {
	loc := model.Location{Filename: rec.File, Line: rec.Line}
	switch model.KindFromString(rec.Kind) {
	case model.KindModule:
		parent, ok := owner.(*model.Module)
		if !ok {
			return fmt.Errorf("module %q nested under a %s", rec.Name, owner.Kind())
		}
		_, err := d.buildModule(rec, parent)
		return err

	case model.KindClass:
		cls := model.NewClass(rec.Name, loc)
		cls.IsConditional = rec.Conditional
		cls.Docstring = rec.Docstring
		scope := scopeOf(owner)
		for _, slot := range rec.Bases {
			cls.Bases = append(cls.Bases, d.makeSlot(slot, scope))
		}
		cls.Metaclass = d.makeSlot(rec.Metaclass, scope)
		cls.Decorations = d.makeDecorations(rec.Decorations, rec.File, scope)
		d.root.AddObject(cls, owner)
		return d.buildMembers(rec, cls)

	case model.KindFunction:
		fn := model.NewFunction(rec.Name, loc)
		fn.IsConditional = rec.Conditional
		fn.Docstring = rec.Docstring
		scope := scopeOf(owner)
		for _, arg := range rec.Args {
			fn.Args = append(fn.Args, &model.Argument{
				Name:       arg.Name,
				Kind:       argKindFromString(arg.Kind),
				Datatype:   d.makeSlot(arg.Datatype, scope),
				HasDefault: arg.HasDefault,
			})
		}
		fn.ReturnType = d.makeSlot(rec.ReturnType, scope)
		fn.Decorations = d.makeDecorations(rec.Decorations, rec.File, scope)
		fn.Modifiers = rec.Modifiers
		fn.Locals = rec.Locals
		fn.IsProperty = rec.IsProperty
		fn.IsClassMethod = rec.IsClassMethod
		fn.IsStaticMethod = rec.IsStaticMethod
		fn.IsOverload = rec.IsOverload
		fn.IsAsync = rec.IsAsync
		d.root.AddObject(fn, owner)
		return d.buildMembers(rec, fn)

	case model.KindVariable:
		v := model.NewVariable(rec.Name, loc)
		v.IsConditional = rec.Conditional
		v.Value = rec.Value
		v.Datatype = d.makeSlot(rec.Datatype, scopeOf(owner))
		v.Exported = rec.Exported
		if rec.AliasOf != "" {
			qname := rec.AliasOf
			d.aliasFixes = append(d.aliasFixes, func() {
				v.AliasOf = d.root.Lookup(qname)
			})
		}
		d.root.AddObject(v, owner)
		return nil

	case model.KindIndirection:
		ind := model.NewIndirection(rec.Name, loc, rec.Target)
		ind.IsConditional = rec.Conditional
		d.root.AddObject(ind, owner)
		return nil

	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
}

// makeSlot creates the slot undecided and defers the recorded decision
// until the whole tree exists.
func (d *decoder) makeSlot(rec *SlotRec, scope model.Node) *model.Ref {
	if rec == nil {
		return nil
	}
	ref := model.NewRef(rec.Raw, scope)
	switch rec.State {
	case "resolved":
		target := rec.Target
		d.slotFixes = append(d.slotFixes, func() {
			ref.RestoreResolved(d.root, target)
		})
	case "external":
		external := rec.External
		d.slotFixes = append(d.slotFixes, func() {
			ref.MarkExternal(external)
		})
	default:
		if rec.Reason != "" {
			reason := model.Reason(rec.Reason)
			d.slotFixes = append(d.slotFixes, func() {
				ref.MarkUnresolved(reason)
			})
		}
	}
	return ref
}

func (d *decoder) makeDecorations(recs []DecoRec, file string, scope model.Node) []*model.Decoration {
	var out []*model.Decoration
	for _, rec := range recs {
		out = append(out, &model.Decoration{
			Name:     d.makeSlot(rec.Name, scope),
			Args:     rec.Args,
			Location: model.Location{Filename: file, Line: rec.Line},
		})
	}
	return out
}

func (d *decoder) restore() {
	for _, fix := range d.slotFixes {
		fix()
	}
	for _, fix := range d.aliasFixes {
		fix()
	}
}

// scopeOf gives the namespace reference slots bind to: the owner itself.
// Slot scopes always sit on the definition's enclosing namespace, matching
// how the ingester binds them.
func scopeOf(owner model.Node) model.Node {
	return owner
}

func argKindFromString(s string) model.ArgKind {
	switch s {
	case "keyword-only":
		return model.ArgKeywordOnly
	case "var-positional":
		return model.ArgVarPositional
	case "var-keyword":
		return model.ArgVarKeyword
	default:
		return model.ArgPositional
	}
}

func policyFromString(s string) model.ExportPolicy {
	switch s {
	case "declared":
		return model.ExportDeclared
	case "degraded":
		return model.ExportDegraded
	default:
		return model.ExportImplicit
	}
}

func severityFromString(s string) model.Severity {
	switch s {
	case "error":
		return model.SeverityError
	case "warning":
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}
