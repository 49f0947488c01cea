// # internal/ingest/parser.go
package ingest

import (
	"errors"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyspect/internal/model"
)

type Parser struct {
	loader *GrammarLoader
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{loader: loader}
}

// ParseModule parses content and populates the already registered module
// with its members, wildcard imports and __all__ declaration.
func (p *Parser) ParseModule(root *model.TreeRoot, m *model.Module, content []byte) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.loader.Python())

	tree := parser.Parse(content, nil)
	if tree == nil {
		return errors.New("parse failed")
	}
	defer tree.Close()

	b := &builder{
		root:   root,
		module: m,
		source: content,
		path:   m.SourcePath,
	}
	b.buildModule(tree.RootNode())
	return nil
}
