package compiler

import (
	"fmt"

	"github.com/chazu/tinyscript/vm"
)

// ---------------------------------------------------------------------------
// Code generation
// ---------------------------------------------------------------------------
//
// Every expression leaves its value in the accumulator R1. Binary operators
// evaluate the left operand, save it on the stack, evaluate the right
// operand into R3 and restore the left into R1 before operating.

// Generate emits the instructions for tree into b, in tree order. It
// returns the builder's first operand error, if any.
func Generate(tree *Tree, b *vm.Builder) error {
	if tree == nil || tree.Root == NoNode {
		return fmt.Errorf("generate: empty tree")
	}
	g := &generator{tree: tree, b: b}
	if err := g.node(tree.Root); err != nil {
		return err
	}
	return b.Err()
}

type generator struct {
	tree *Tree
	b    *vm.Builder
}

var (
	r1 = vm.Reg(vm.R1)
	r2 = vm.Reg(vm.R2)
	r3 = vm.Reg(vm.R3)
	r4 = vm.Reg(vm.R4)
)

func (g *generator) children(n *Node) error {
	for _, c := range n.Children {
		if err := g.node(c); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) node(id NodeID) error {
	n := g.tree.Node(id)
	b := g.b

	switch n.Kind {
	case NodeBlock:
		return g.children(n)

	case NodePrint:
		for _, c := range n.Children {
			if err := g.node(c); err != nil {
				return err
			}
			b.PRINT(r1)
		}

	case NodeClear:
		b.CLEAR()

	case NodeAssign:
		if err := g.children(n); err != nil {
			return err
		}
		b.MOV(r2, r1).MOV(vm.Ref(n.Symbol), r1)

	case NodeBinary:
		if len(n.Children) != 2 {
			return fmt.Errorf("generate: %s node has %d operands", n.Op, len(n.Children))
		}
		lhs, rhs := n.Children[0], n.Children[1]
		if n.Op == OperatorExp {
			// Right operand first, so chained powers nest to the right.
			if err := g.node(rhs); err != nil {
				return err
			}
			b.PUSH(vm.R1)
			if err := g.node(lhs); err != nil {
				return err
			}
			b.POP(vm.R3).EXP(vm.R1, vm.R3)
			return nil
		}
		if err := g.node(lhs); err != nil {
			return err
		}
		b.PUSH(vm.R1)
		if err := g.node(rhs); err != nil {
			return err
		}
		b.MOV(r3, r1).POP(vm.R1)
		switch n.Op {
		case OperatorAdd:
			b.ADD(vm.R1, vm.R3)
		case OperatorSub:
			b.SUB(vm.R1, vm.R3)
		case OperatorMul:
			b.MUL(vm.R1, vm.R3)
		case OperatorDiv:
			b.DIV(vm.R1, vm.R3)
		case OperatorMod:
			b.DIV(vm.R1, vm.R3).MOV(r1, r4)
		default:
			return fmt.Errorf("generate: unknown operator %d", n.Op)
		}

	case NodeNeg:
		if err := g.children(n); err != nil {
			return err
		}
		b.NEG(vm.R1)

	case NodeInt:
		b.MOV(r1, vm.Imm(n.Int))

	case NodeBool:
		b.MOV(r1, vm.ImmBool(n.Bool))

	case NodeString:
		b.MOV(r1, vm.ImmStr(n.Str))

	case NodeVar:
		b.MOV(r1, vm.Ref(n.Symbol))

	default:
		return fmt.Errorf("generate: unknown node kind %s", n.Kind)
	}
	return nil
}
