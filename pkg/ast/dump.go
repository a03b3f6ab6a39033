package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders a tree as a parenthesized s-expression, one statement per line
func Dump(n Node) string {
	var sb strings.Builder
	dump(&sb, n, 0)
	return sb.String()
}

func dumpBlock(sb *strings.Builder, tag string, stmts []Stmt, depth int) {
	fmt.Fprintf(sb, "\n%s(%s", strings.Repeat("  ", depth), tag)
	for _, s := range stmts {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("  ", depth+1))
		dump(sb, s, depth+1)
	}
	sb.WriteString(")")
}

func dump(sb *strings.Builder, n Node, depth int) {
	switch n := n.(type) {
	case *Program:
		sb.WriteString("(program")
		for _, s := range n.Stmts {
			sb.WriteString("\n  ")
			dump(sb, s, 1)
		}
		sb.WriteString(")")
	case *Number: fmt.Fprintf(sb, "(number %d)", n.Value)
	case *Float: fmt.Fprintf(sb, "(float %s)", n.Text)
	case *String: fmt.Fprintf(sb, "(string %s)", strconv.Quote(n.Value))
	case *Ident: fmt.Fprintf(sb, "(var %s)", n.Name)
	case *BinaryOp:
		fmt.Fprintf(sb, "(binop %s ", OpString(n.Op))
		dump(sb, n.Left, depth)
		sb.WriteString(" ")
		dump(sb, n.Right, depth)
		sb.WriteString(")")
	case *LogicalOp:
		fmt.Fprintf(sb, "(logic %s ", OpString(n.Op))
		dump(sb, n.Left, depth)
		sb.WriteString(" ")
		dump(sb, n.Right, depth)
		sb.WriteString(")")
	case *Not:
		sb.WriteString("(not ")
		dump(sb, n.X, depth)
		sb.WriteString(")")
	case *Call:
		fmt.Fprintf(sb, "(call %s", n.Name)
		for _, a := range n.Args {
			sb.WriteString(" ")
			dump(sb, a, depth)
		}
		sb.WriteString(")")
	case *Assign:
		fmt.Fprintf(sb, "(assign %s ", n.Name)
		dump(sb, n.Value, depth)
		sb.WriteString(")")
	case *ExprStmt:
		sb.WriteString("(expr ")
		dump(sb, n.X, depth)
		sb.WriteString(")")
	case *Print:
		sb.WriteString("(print ")
		dump(sb, n.X, depth)
		sb.WriteString(")")
	case *Input:
		fmt.Fprintf(sb, "(input %s", n.Name)
		if n.Prompt != nil {
			sb.WriteString(" ")
			dump(sb, n.Prompt, depth)
		}
		sb.WriteString(")")
	case *Return:
		sb.WriteString("(return ")
		dump(sb, n.X, depth)
		sb.WriteString(")")
	case *If:
		tag := "if"
		if n.HasElse {
			tag = "ifelse"
		}
		fmt.Fprintf(sb, "(%s ", tag)
		dump(sb, n.Cond, depth)
		dumpBlock(sb, "then", n.Then, depth+1)
		if n.HasElse {
			dumpBlock(sb, "else", n.Else, depth+1)
		}
		sb.WriteString(")")
	case *While:
		sb.WriteString("(while ")
		dump(sb, n.Cond, depth)
		dumpBlock(sb, "body", n.Body, depth+1)
		sb.WriteString(")")
	case *Repeat:
		sb.WriteString("(repeat ")
		dump(sb, n.Count, depth)
		dumpBlock(sb, "body", n.Body, depth+1)
		sb.WriteString(")")
	case *FuncDecl:
		fmt.Fprintf(sb, "(function %s (%s)", n.Name, strings.Join(n.Params, " "))
		dumpBlock(sb, "body", n.Body, depth+1)
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "(?%T)", n)
	}
}
