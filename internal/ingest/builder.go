// # internal/ingest/builder.go
package ingest

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyspect/internal/model"
)

// builder turns one parsed source file into members of its module. Names
// stay raw text throughout; the resolver decides them later.
type builder struct {
	root   *model.TreeRoot
	module *model.Module
	source []byte
	path   string
}

// rawDecoration is a decorator read off a decorated_definition, before the
// owning scope is known.
type rawDecoration struct {
	name string
	args string
	loc  model.Location
}

func (b *builder) buildModule(root *sitter.Node) {
	b.module.Docstring = b.docstring(root)
	b.block(root, b.module, false)
}

// block walks the statements of a suite, attaching definitions to owner.
// conditional marks bindings made inside one branch of an exclusive
// construct.
func (b *builder) block(node *sitter.Node, owner model.Node, conditional bool) {
	for i := uint(0); i < node.ChildCount(); i++ {
		b.statement(node.Child(i), owner, conditional)
	}
}

func (b *builder) statement(node *sitter.Node, owner model.Node, conditional bool) {
	switch node.Kind() {
	case "import_statement":
		b.importStmt(node, owner, conditional)
	case "import_from_statement":
		b.fromImport(node, owner, conditional)
	case "function_definition":
		b.function(node, nil, owner, conditional)
	case "class_definition":
		b.class(node, nil, owner, conditional)
	case "decorated_definition":
		b.decorated(node, owner, conditional)
	case "expression_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			switch child.Kind() {
			case "assignment":
				b.assignment(child, owner, conditional)
			case "augmented_assignment":
				b.augmented(child, owner)
			case "call":
				b.exportMutation(child, owner)
			}
		}
	case "if_statement":
		b.ifStmt(node, owner)
	case "try_statement":
		b.tryStmt(node, owner)
	case "for_statement":
		b.loopStmt(node, owner, conditional)
	case "while_statement":
		if body := node.ChildByFieldName("body"); body != nil {
			b.block(body, owner, conditional)
		}
	case "with_statement":
		b.withStmt(node, owner, conditional)
	}
}

// importStmt handles `import a.b` and `import a.b as c`. A plain import
// binds the top-level package name; an aliased one binds the alias to the
// full dotted target.
func (b *builder) importStmt(node *sitter.Node, owner model.Node, conditional bool) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			dotted := b.text(child)
			top := strings.SplitN(dotted, ".", 2)[0]
			b.bindImport(owner, top, top, b.locOf(child), conditional)
		case "aliased_import":
			dotted, alias := b.aliasedImport(child)
			if alias != "" {
				b.bindImport(owner, alias, dotted, b.locOf(child), conditional)
			}
		}
	}
}

// fromImport handles `from x import ...` in all its shapes, including
// relative targets and the wildcard form.
func (b *builder) fromImport(node *sitter.Node, owner model.Node, conditional bool) {
	target := ""
	sawImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "relative_import":
			target = b.relativeTarget(child)
		case "dotted_name", "identifier":
			if !sawImport {
				target = b.text(child)
				continue
			}
			name := b.text(child)
			b.bindImport(owner, name, target+"."+name, b.locOf(child), conditional)
		case "import":
			sawImport = true
		case "wildcard_import":
			if m, ok := owner.(*model.Module); ok {
				m.Wildcards = append(m.Wildcards, &model.WildcardImport{
					TargetRaw:     target,
					Location:      b.locOf(node),
					IsConditional: conditional,
				})
			}
		case "aliased_import":
			name, alias := b.aliasedImport(child)
			if alias != "" {
				b.bindImport(owner, alias, target+"."+name, b.locOf(child), conditional)
			}
		}
	}
}

func (b *builder) aliasedImport(node *sitter.Node) (dotted, alias string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "dotted_name" || child.Kind() == "identifier" {
			if dotted == "" {
				dotted = b.text(child)
			} else {
				alias = b.text(child)
			}
		}
	}
	return dotted, alias
}

// relativeTarget turns `.`/`..`/`.sub` into an absolute dotted name using
// the containing module's position in the package tree.
func (b *builder) relativeTarget(node *sitter.Node) string {
	dots := 0
	dotted := ""
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import_prefix":
			dots = len(b.text(child))
		case "dotted_name", "identifier":
			dotted = b.text(child)
		}
	}

	parts := strings.Split(b.module.QualifiedName(), ".")
	if !b.module.IsPackage {
		parts = parts[:len(parts)-1]
	}
	if drop := dots - 1; drop > 0 {
		if drop >= len(parts) {
			parts = nil
		} else {
			parts = parts[:len(parts)-drop]
		}
	}
	base := strings.Join(parts, ".")
	switch {
	case base == "":
		return dotted
	case dotted == "":
		return base
	default:
		return base + "." + dotted
	}
}

// bindImport creates the binding an import statement introduces: an
// indirection node at module or class level, a plain local inside a
// function.
func (b *builder) bindImport(owner model.Node, name, target string, loc model.Location, conditional bool) {
	if fn, ok := owner.(*model.Function); ok {
		fn.Locals = append(fn.Locals, name)
		return
	}
	ind := model.NewIndirection(name, loc, target)
	ind.IsConditional = conditional
	b.root.AddObject(ind, owner)
}

func (b *builder) decorated(node *sitter.Node, owner model.Node, conditional bool) {
	var decos []rawDecoration
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "decorator" {
			continue
		}
		decos = append(decos, b.readDecorator(child))
	}
	def := node.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Kind() {
	case "function_definition":
		b.function(def, decos, owner, conditional)
	case "class_definition":
		b.class(def, decos, owner, conditional)
	}
}

func (b *builder) readDecorator(node *sitter.Node) rawDecoration {
	d := rawDecoration{loc: b.locOf(node)}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "@" || child.Kind() == "comment" {
			continue
		}
		if child.Kind() == "call" {
			if fn := child.ChildByFieldName("function"); fn != nil {
				d.name = b.text(fn)
			}
			if args := child.ChildByFieldName("arguments"); args != nil {
				d.args = b.text(args)
			}
			return d
		}
		d.name = b.text(child)
		return d
	}
	return d
}

func (b *builder) class(node *sitter.Node, decos []rawDecoration, owner model.Node, conditional bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	// Classes defined inside functions are runtime values, not documentable
	// structure. The name still becomes a local binding.
	if fn, ok := owner.(*model.Function); ok {
		fn.Locals = append(fn.Locals, name)
		return
	}

	cls := model.NewClass(name, b.locOf(node))
	cls.IsConditional = conditional
	cls.Decorations = b.decorations(decos, owner)

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		b.superclasses(supers, cls, owner)
	}

	b.root.AddObject(cls, owner)
	if body := node.ChildByFieldName("body"); body != nil {
		cls.Docstring = b.docstring(body)
		b.block(body, cls, false)
	}
}

// superclasses reads the argument list of a class statement. Base
// expressions resolve in the scope where the class statement executes, so
// the refs bind to owner, not to the class body.
func (b *builder) superclasses(args *sitter.Node, cls *model.Class, owner model.Node) {
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		switch child.Kind() {
		case "(", ")", ",", "comment":
			continue
		case "keyword_argument":
			key := child.ChildByFieldName("name")
			value := child.ChildByFieldName("value")
			if key != nil && value != nil && b.text(key) == "metaclass" {
				cls.Metaclass = model.NewRef(b.text(value), owner)
			}
		case "subscript":
			// Generic[T] and friends: the subscripted value carries the
			// ancestry.
			if value := child.ChildByFieldName("value"); value != nil {
				cls.Bases = append(cls.Bases, model.NewRef(b.text(value), owner))
			}
		default:
			cls.Bases = append(cls.Bases, model.NewRef(b.text(child), owner))
		}
	}
}

func (b *builder) function(node *sitter.Node, decos []rawDecoration, owner model.Node, conditional bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	fn := model.NewFunction(name, b.locOf(node))
	fn.IsConditional = conditional
	fn.Decorations = b.decorations(decos, owner)

	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == "async" {
			fn.Modifiers = append(fn.Modifiers, "async")
		}
	}

	// Annotations and defaults are evaluated where the def statement runs,
	// not inside the function.
	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Args = b.parameters(params, owner)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnType = model.NewRef(b.text(ret), owner)
	}

	if outer, ok := owner.(*model.Function); ok {
		// A nested def binds its name locally and stays reachable as a
		// member for closure-scope lookups.
		outer.Locals = append(outer.Locals, name)
	}
	b.root.AddObject(fn, owner)

	if body := node.ChildByFieldName("body"); body != nil {
		fn.Docstring = b.docstring(body)
		b.block(body, fn, false)
	}
}

func (b *builder) parameters(params *sitter.Node, owner model.Node) []*model.Argument {
	var args []*model.Argument
	kind := model.ArgPositional
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			args = append(args, &model.Argument{Name: b.text(child), Kind: kind})
		case "typed_parameter":
			arg := &model.Argument{Kind: kind}
			for j := uint(0); j < child.ChildCount(); j++ {
				if sub := child.Child(j); sub.Kind() == "identifier" {
					arg.Name = b.text(sub)
					break
				}
			}
			if t := child.ChildByFieldName("type"); t != nil {
				arg.Datatype = model.NewRef(b.text(t), owner)
			}
			args = append(args, arg)
		case "default_parameter", "typed_default_parameter":
			arg := &model.Argument{Kind: kind, HasDefault: true}
			if n := child.ChildByFieldName("name"); n != nil {
				arg.Name = b.text(n)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				arg.Datatype = model.NewRef(b.text(t), owner)
			}
			args = append(args, arg)
		case "list_splat_pattern":
			args = append(args, &model.Argument{Name: b.innerIdentifier(child), Kind: model.ArgVarPositional})
			kind = model.ArgKeywordOnly
		case "dictionary_splat_pattern":
			args = append(args, &model.Argument{Name: b.innerIdentifier(child), Kind: model.ArgVarKeyword})
		case "keyword_separator":
			kind = model.ArgKeywordOnly
		}
	}
	return args
}

func (b *builder) innerIdentifier(node *sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child.Kind() == "identifier" {
			return b.text(child)
		}
	}
	return ""
}

func (b *builder) decorations(decos []rawDecoration, owner model.Node) []*model.Decoration {
	if len(decos) == 0 {
		return nil
	}
	out := make([]*model.Decoration, 0, len(decos))
	for _, d := range decos {
		out = append(out, &model.Decoration{
			Name:     model.NewRef(d.name, owner),
			Args:     d.args,
			Location: d.loc,
		})
	}
	return out
}

func (b *builder) assignment(node *sitter.Node, owner model.Node, conditional bool) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	right := node.ChildByFieldName("right")
	typ := node.ChildByFieldName("type")

	if fn, ok := owner.(*model.Function); ok {
		b.collectLocals(left, fn)
		b.instanceAttribute(left, typ, fn, conditional)
		return
	}

	if m, ok := owner.(*model.Module); ok && b.text(left) == "__all__" {
		b.declareAll(m, right, b.locOf(node))
		return
	}

	value := ""
	if right != nil {
		value = b.text(right)
	}
	for _, nameNode := range targetIdentifiers(left) {
		v := model.NewVariable(b.text(nameNode), b.locOf(nameNode))
		v.IsConditional = conditional
		v.Value = value
		if typ != nil {
			v.Datatype = model.NewRef(b.text(typ), owner)
		}
		b.root.AddObject(v, owner)
	}
}

// instanceAttribute promotes `self.<name> = ...` inside a method to a
// variable on the owning class.
func (b *builder) instanceAttribute(left *sitter.Node, typ *sitter.Node, fn *model.Function, conditional bool) {
	if left.Kind() != "attribute" {
		return
	}
	obj := left.ChildByFieldName("object")
	attr := left.ChildByFieldName("attribute")
	if obj == nil || attr == nil || b.text(obj) != "self" {
		return
	}
	cls, ok := fn.Parent().(*model.Class)
	if !ok {
		return
	}
	name := b.text(attr)
	if b.root.Lookup(cls.QualifiedName()+"."+name) != nil {
		return
	}
	v := model.NewVariable(name, b.locOf(left))
	v.IsConditional = conditional
	if typ != nil {
		v.Datatype = model.NewRef(b.text(typ), cls)
	}
	b.root.AddObject(v, cls)
}

func (b *builder) augmented(node *sitter.Node, owner model.Node) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	if fn, ok := owner.(*model.Function); ok {
		b.collectLocals(left, fn)
		return
	}
	m, ok := owner.(*model.Module)
	if !ok || b.text(left) != "__all__" {
		return
	}
	// `__all__ += [...]` extends the declaration.
	b.extendAll(m, right, b.locOf(node))
}

// exportMutation catches `__all__.append(...)` and `__all__.extend(...)`
// statements.
func (b *builder) exportMutation(call *sitter.Node, owner model.Node) {
	m, ok := owner.(*model.Module)
	if !ok {
		return
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil || b.text(obj) != "__all__" {
		return
	}
	method := b.text(attr)
	if method != "append" && method != "extend" {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	b.extendAll(m, args, b.locOf(call))
}

func (b *builder) declareAll(m *model.Module, right *sitter.Node, loc model.Location) {
	decl := &model.ExportDecl{Location: loc}
	if right != nil {
		names, literal := b.stringElements(right)
		decl.Names = names
		decl.NonLiteral = !literal
	} else {
		decl.NonLiteral = true
	}
	m.AllDecl = decl
}

func (b *builder) extendAll(m *model.Module, node *sitter.Node, loc model.Location) {
	if m.AllDecl == nil {
		m.AllDecl = &model.ExportDecl{Location: loc}
	}
	names, literal := b.stringElements(node)
	m.AllDecl.Names = append(m.AllDecl.Names, names...)
	if !literal {
		m.AllDecl.NonLiteral = true
	}
}

// stringElements collects the string literals of a list, tuple or argument
// list. The boolean reports whether every element was a string literal.
func (b *builder) stringElements(node *sitter.Node) ([]string, bool) {
	switch node.Kind() {
	case "list", "tuple", "set", "argument_list", "parenthesized_expression":
		names := []string{}
		literal := true
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			switch child.Kind() {
			case "[", "]", "(", ")", "{", "}", ",", "comment":
				continue
			case "string":
				names = append(names, b.stringValue(child))
			case "list", "tuple", "set", "parenthesized_expression":
				inner, ok := b.stringElements(child)
				names = append(names, inner...)
				if !ok {
					literal = false
				}
			default:
				literal = false
			}
		}
		return names, literal
	case "string":
		return []string{b.stringValue(node)}, true
	default:
		return nil, false
	}
}

func (b *builder) ifStmt(node *sitter.Node, owner model.Node) {
	if body := node.ChildByFieldName("consequence"); body != nil {
		b.block(body, owner, true)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "elif_clause":
			if body := child.ChildByFieldName("consequence"); body != nil {
				b.block(body, owner, true)
			}
		case "else_clause":
			if body := child.ChildByFieldName("body"); body != nil {
				b.block(body, owner, true)
			}
		}
	}
}

func (b *builder) tryStmt(node *sitter.Node, owner model.Node) {
	if body := node.ChildByFieldName("body"); body != nil {
		b.block(body, owner, true)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "except_clause", "except_group_clause":
			b.exceptClause(child, owner)
		case "else_clause":
			if body := child.ChildByFieldName("body"); body != nil {
				b.block(body, owner, true)
			}
		case "finally_clause":
			// finally always runs; its bindings are unconditional.
			for j := uint(0); j < child.ChildCount(); j++ {
				if sub := child.Child(j); sub.Kind() == "block" {
					b.block(sub, owner, false)
				}
			}
		}
	}
}

func (b *builder) exceptClause(node *sitter.Node, owner model.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "as_pattern":
			if fn, ok := owner.(*model.Function); ok {
				if alias := child.ChildByFieldName("alias"); alias != nil {
					fn.Locals = append(fn.Locals, b.text(alias))
				}
			}
		case "block":
			b.block(child, owner, true)
		}
	}
}

func (b *builder) loopStmt(node *sitter.Node, owner model.Node, conditional bool) {
	if fn, ok := owner.(*model.Function); ok {
		if left := node.ChildByFieldName("left"); left != nil {
			b.collectLocals(left, fn)
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		b.block(body, owner, conditional)
	}
}

func (b *builder) withStmt(node *sitter.Node, owner model.Node, conditional bool) {
	if fn, ok := owner.(*model.Function); ok {
		b.withTargets(node, fn)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		b.block(body, owner, conditional)
	}
}

func (b *builder) withTargets(node *sitter.Node, fn *model.Function) {
	if node.Kind() == "as_pattern" {
		if alias := node.ChildByFieldName("alias"); alias != nil {
			b.collectLocals(alias, fn)
		}
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "block" {
			continue
		}
		b.withTargets(child, fn)
	}
}

func (b *builder) collectLocals(node *sitter.Node, fn *model.Function) {
	if node.Kind() == "identifier" {
		fn.Locals = append(fn.Locals, b.text(node))
		return
	}
	if node.Kind() == "attribute" {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		b.collectLocals(node.Child(i), fn)
	}
}

// targetIdentifiers lists the identifier nodes bound by an assignment
// target: a plain name, or every name of a tuple/list pattern.
func targetIdentifiers(left *sitter.Node) []*sitter.Node {
	switch left.Kind() {
	case "identifier":
		return []*sitter.Node{left}
	case "pattern_list", "tuple_pattern", "list_pattern":
		var out []*sitter.Node
		for i := uint(0); i < left.ChildCount(); i++ {
			out = append(out, targetIdentifiers(left.Child(i))...)
		}
		return out
	default:
		return nil
	}
}

// docstring returns the stripped leading string literal of a suite, if any.
func (b *builder) docstring(body *sitter.Node) string {
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() == "comment" {
			continue
		}
		if child.Kind() != "expression_statement" {
			return ""
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			if s := child.Child(j); s.Kind() == "string" {
				return b.stringValue(s)
			}
		}
		return ""
	}
	return ""
}

// stringValue strips prefixes and quotes from a string literal.
func (b *builder) stringValue(node *sitter.Node) string {
	s := b.text(node)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func (b *builder) text(node *sitter.Node) string {
	return string(b.source[node.StartByte():node.EndByte()])
}

func (b *builder) locOf(node *sitter.Node) model.Location {
	return model.Location{
		Filename: b.path,
		Line:     int(node.StartPosition().Row) + 1,
	}
}
