// # internal/interchange/encode.go
package interchange

import (
	"encoding/json"
	"io"

	"pyspect/internal/model"
)

// Encode writes the tree as indented JSON.
func Encode(w io.Writer, root *model.TreeRoot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(root))
}

// Build maps the tree to its interchange document.
func Build(root *model.TreeRoot) *Document {
	doc := &Document{
		Version: FormatVersion,
		LoadID:  root.LoadID,
	}
	for _, m := range root.RootModules() {
		doc.Modules = append(doc.Modules, encodeNode(m))
	}
	for _, d := range root.Diagnostics() {
		doc.Diagnostics = append(doc.Diagnostics, DiagRec{
			Severity: d.Severity.String(),
			Code:     d.Code,
			Object:   d.Object,
			File:     d.Location.Filename,
			Line:     d.Location.Line,
			Message:  d.Message,
		})
	}
	return doc
}

func encodeNode(n model.Node) *Record {
	rec := &Record{
		Name:        n.Name(),
		Kind:        n.Kind().String(),
		File:        n.Location().Filename,
		Line:        n.Location().Line,
		Conditional: n.Conditional(),
	}
	switch ob := n.(type) {
	case *model.Module:
		rec.Docstring = ob.Docstring
		rec.IsPackage = ob.IsPackage
		rec.SourcePath = ob.SourcePath
		if ob.AllDecl != nil {
			rec.All = &AllRec{
				Names:      ob.AllDecl.Names,
				NonLiteral: ob.AllDecl.NonLiteral,
				Line:       ob.AllDecl.Location.Line,
			}
		}
		for _, wc := range ob.Wildcards {
			rec.Wildcards = append(rec.Wildcards, WildcardRec{
				Target:      wc.TargetRaw,
				Line:        wc.Location.Line,
				Conditional: wc.IsConditional,
				Expanded:    wc.Expanded,
				Cyclic:      wc.Cyclic,
			})
		}
		if ob.Exports != nil {
			rec.Exports = &ExportsRec{
				Policy:  policyString(ob.Exports.Policy),
				Names:   ob.Exports.Names,
				Missing: ob.Exports.Missing,
			}
		}

	case *model.Class:
		rec.Docstring = ob.Docstring
		for _, base := range ob.Bases {
			rec.Bases = append(rec.Bases, encodeSlot(base))
		}
		rec.Metaclass = encodeSlot(ob.Metaclass)
		rec.Decorations = encodeDecorations(ob.Decorations)

	case *model.Function:
		rec.Docstring = ob.Docstring
		for _, arg := range ob.Args {
			rec.Args = append(rec.Args, ArgRec{
				Name:       arg.Name,
				Kind:       arg.Kind.String(),
				Datatype:   encodeSlot(arg.Datatype),
				HasDefault: arg.HasDefault,
			})
		}
		rec.ReturnType = encodeSlot(ob.ReturnType)
		rec.Decorations = encodeDecorations(ob.Decorations)
		rec.Modifiers = ob.Modifiers
		rec.Locals = ob.Locals
		rec.IsProperty = ob.IsProperty
		rec.IsClassMethod = ob.IsClassMethod
		rec.IsStaticMethod = ob.IsStaticMethod
		rec.IsOverload = ob.IsOverload
		rec.IsAsync = ob.IsAsync

	case *model.Variable:
		rec.Value = ob.Value
		rec.Datatype = encodeSlot(ob.Datatype)
		rec.Exported = ob.Exported
		if ob.AliasOf != nil {
			rec.AliasOf = ob.AliasOf.QualifiedName()
		}

	case *model.Indirection:
		rec.Target = ob.Target
	}

	for _, member := range n.Members() {
		rec.Members = append(rec.Members, encodeNode(member))
	}
	return rec
}

func encodeDecorations(decos []*model.Decoration) []DecoRec {
	var out []DecoRec
	for _, d := range decos {
		out = append(out, DecoRec{
			Name: encodeSlot(d.Name),
			Args: d.Args,
			Line: d.Location.Line,
		})
	}
	return out
}

func encodeSlot(ref *model.Ref) *SlotRec {
	if ref == nil {
		return nil
	}
	rec := &SlotRec{
		Raw:   ref.Raw(),
		State: ref.State().String(),
	}
	switch ref.State() {
	case model.RefResolved:
		rec.Target = ref.Target().QualifiedName()
	case model.RefExternal:
		rec.External = ref.External()
	default:
		if ref.Decided() {
			rec.Reason = string(ref.Reason())
		}
	}
	return rec
}

func policyString(p model.ExportPolicy) string {
	switch p {
	case model.ExportDeclared:
		return "declared"
	case model.ExportDegraded:
		return "degraded"
	default:
		return "implicit"
	}
}
