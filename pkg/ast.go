package bask

import (
	"fmt"
	"strings"
)

// Expr is a node of the syntax tree. Optional children are always the None
// sentinel, never nil.
type Expr interface{}

// NoneExpr marks an absent optional child.
type NoneExpr struct{}

// None is the shared absence marker.
var None = &NoneExpr{}

// IsNone reports whether e is the absence marker.
func IsNone(e Expr) bool {
	_, ok := e.(*NoneExpr)
	return ok
}

type BinaryExpr struct {
	Op  Operator
	Lhs Expr
	Rhs Expr
}

type UnaryExpr struct {
	Op      Operator
	Operand Expr
}

type LiteralExpr struct {
	Value int64
}

type Identifier struct {
	Name string
}

// VariableDecl declares a variable. Typ is an Identifier type reference or
// None; Init is the initializer expression or None for an uninitialized
// declaration.
type VariableDecl struct {
	Name string
	Typ  Expr
	Init Expr
}

// FuncDecl defines a function. Params holds only VariableDecls whose Init
// is None.
type FuncDecl struct {
	Name   string
	Params []*VariableDecl
	Body   Expr
}

type FuncCall struct {
	Name string
	Args []Expr
}

// IfExpr is a branching expression; Else is None when the branch is
// missing.
type IfExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

type LoopExpr struct {
	Body Expr
}

// Statement sequences expressions; the value of the whole is the value of
// the last child.
type Statement struct {
	Exprs []Expr
}

// Dump renders a tree in an indented, one-node-per-line form.
func Dump(e Expr) string {
	var sb strings.Builder
	dump(&sb, e, 0)
	return sb.String()
}

func dump(sb *strings.Builder, e Expr, depth int) {
	indent := strings.Repeat("  ", depth)

	switch n := e.(type) {
	case *NoneExpr:
		fmt.Fprintf(sb, "%sNone\n", indent)
	case *LiteralExpr:
		fmt.Fprintf(sb, "%sInt %d\n", indent, n.Value)
	case *Identifier:
		fmt.Fprintf(sb, "%sId %s\n", indent, n.Name)
	case *BinaryExpr:
		fmt.Fprintf(sb, "%sBinary %s\n", indent, n.Op)
		dump(sb, n.Lhs, depth+1)
		dump(sb, n.Rhs, depth+1)
	case *UnaryExpr:
		fmt.Fprintf(sb, "%sUnary %s\n", indent, n.Op)
		dump(sb, n.Operand, depth+1)
	case *VariableDecl:
		fmt.Fprintf(sb, "%sLet %s\n", indent, n.Name)
		dump(sb, n.Typ, depth+1)
		dump(sb, n.Init, depth+1)
	case *FuncDecl:
		names := make([]string, len(n.Params))
		for i, p := range n.Params {
			names[i] = p.Name
		}
		fmt.Fprintf(sb, "%sFn %s(%s)\n", indent, n.Name, strings.Join(names, ", "))
		dump(sb, n.Body, depth+1)
	case *FuncCall:
		fmt.Fprintf(sb, "%sCall %s\n", indent, n.Name)
		for _, a := range n.Args {
			dump(sb, a, depth+1)
		}
	case *IfExpr:
		fmt.Fprintf(sb, "%sIf\n", indent)
		dump(sb, n.Cond, depth+1)
		dump(sb, n.Then, depth+1)
		dump(sb, n.Else, depth+1)
	case *LoopExpr:
		fmt.Fprintf(sb, "%sLoop\n", indent)
		dump(sb, n.Body, depth+1)
	case *Statement:
		fmt.Fprintf(sb, "%sStatement\n", indent)
		for _, c := range n.Exprs {
			dump(sb, c, depth+1)
		}
	default:
		fmt.Fprintf(sb, "%s%v\n", indent, e)
	}
}
