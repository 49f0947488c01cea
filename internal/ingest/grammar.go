// # internal/ingest/grammar.go
// Package ingest parses Python sources with tree-sitter and builds the
// documentable-object tree. It records structure and raw expression text
// only; all name resolution happens later.
package ingest

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

type GrammarLoader struct {
	python *sitter.Language
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		python: sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

func (g *GrammarLoader) Python() *sitter.Language { return g.python }
