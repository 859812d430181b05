package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/tinyscript/vm"
)

// ---------------------------------------------------------------------------
// Code-generation tree
// ---------------------------------------------------------------------------

// NodeID indexes a node in its Tree.
type NodeID int

// NoNode is the null NodeID.
const NoNode NodeID = -1

// NodeKind tags the construct a Node represents.
type NodeKind uint8

const (
	NodeBlock  NodeKind = iota // statement list
	NodePrint                  // print(args...)
	NodeClear                  // clear()
	NodeAssign                 // name <- rvalue
	NodeBinary                 // lhs op rhs
	NodeNeg                    // -operand
	NodeInt                    // integer literal
	NodeBool                   // true / false
	NodeString                 // string literal
	NodeVar                    // variable reference
)

var nodeKindNames = [...]string{
	NodeBlock:  "Block",
	NodePrint:  "Print",
	NodeClear:  "Clear",
	NodeAssign: "Assign",
	NodeBinary: "Binary",
	NodeNeg:    "Neg",
	NodeInt:    "Int",
	NodeBool:   "Bool",
	NodeString: "String",
	NodeVar:    "Var",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// Operator is the operation of a NodeBinary.
type Operator uint8

const (
	OperatorAdd Operator = iota
	OperatorSub
	OperatorMul
	OperatorDiv
	OperatorMod
	OperatorExp
)

var operatorSymbols = [...]string{
	OperatorAdd: "+",
	OperatorSub: "-",
	OperatorMul: "*",
	OperatorDiv: "/",
	OperatorMod: "mod",
	OperatorExp: "^",
}

func (o Operator) String() string {
	if int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return "?"
}

// Node is one construct. Only the payload fields belonging to Kind are
// set. Symbol is resolved at parse time for NodeAssign and NodeVar.
type Node struct {
	Kind     NodeKind
	Token    Token
	Type     vm.DataType
	Op       Operator
	Int      int32
	Bool     bool
	Str      string
	Symbol   vm.Symbol
	Parent   NodeID
	Children []NodeID
}

// Tree is an arena of nodes. Root is a NodeBlock.
type Tree struct {
	Nodes []Node
	Root  NodeID
}

func newTree() *Tree {
	t := &Tree{}
	t.Root = t.add(Node{Kind: NodeBlock, Type: vm.TypeEmpty})
	return t
}

func (t *Tree) add(n Node) NodeID {
	n.Parent = NoNode
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

// attach appends child to parent's children.
func (t *Tree) attach(parent, child NodeID) {
	t.Nodes[child].Parent = parent
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, child)
}

// truncate drops every node allocated at or after id.
func (t *Tree) truncate(id int) {
	if id < len(t.Nodes) {
		t.Nodes = t.Nodes[:id]
	}
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Statements returns the top-level statement nodes.
func (t *Tree) Statements() []NodeID {
	if t == nil || t.Root == NoNode {
		return nil
	}
	return t.Nodes[t.Root].Children
}

// Walk calls fn for id and each of its descendants in depth-first order.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, n *Node, depth int)) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, *Node, int)) {
	n := &t.Nodes[id]
	fn(id, n, depth)
	for _, c := range n.Children {
		t.walk(c, depth+1, fn)
	}
}

// String renders an indented dump, one node per line.
func (t *Tree) String() string {
	if t == nil || t.Root == NoNode {
		return "<empty>"
	}
	var b strings.Builder
	t.Walk(t.Root, func(_ NodeID, n *Node, depth int) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.describe())
	})
	return b.String()
}

func (n *Node) describe() string {
	var detail string
	switch n.Kind {
	case NodeBlock:
		return fmt.Sprintf("Block (%d statements)", len(n.Children))
	case NodeBinary:
		detail = n.Op.String()
	case NodeInt:
		detail = fmt.Sprint(n.Int)
	case NodeBool:
		detail = fmt.Sprint(n.Bool)
	case NodeString:
		detail = EscapeString(n.Str)
	case NodeAssign, NodeVar:
		detail = fmt.Sprintf("%s@%d", n.Symbol.Name, n.Symbol.Offset)
	}
	s := n.Kind.String()
	if detail != "" {
		s += " " + detail
	}
	if n.Type != vm.TypeEmpty {
		s += " : " + n.Type.String()
	}
	if n.Token.Line > 0 {
		s += fmt.Sprintf(" [%d:%d]", n.Token.Line, n.Token.Col)
	}
	return s
}
