// # internal/model/visitor.go
package model

// Visitor is the callback pair for tree traversal. Enter returning false
// prunes the subtree; Leave still runs for entered nodes.
type Visitor interface {
	Enter(n Node) bool
	Leave(n Node)
}

// Walk traverses the tree depth-first in member order.
func Walk(n Node, v Visitor) {
	if !v.Enter(n) {
		return
	}
	for _, member := range n.Members() {
		Walk(member, v)
	}
	v.Leave(n)
}

// VisitFunc adapts a plain function to Visitor, entering every subtree.
type VisitFunc func(n Node)

func (f VisitFunc) Enter(n Node) bool {
	f(n)
	return true
}

func (f VisitFunc) Leave(Node) {}
