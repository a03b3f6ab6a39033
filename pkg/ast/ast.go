// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/xplshn/kidc/pkg/token"
)

// Node represents a node in the Abstract Syntax Tree. The set of node kinds
// is closed: only this package can implement Node.
type Node interface {
	Pos() token.Token
	node()
}

// Expr is a node that produces a value
type Expr interface {
	Node
	exprNode()
}

// Stmt is a node that can appear in a statement list
type Stmt interface {
	Node
	stmtNode()
}

type base struct{ Tok token.Token }

func (b *base) Pos() token.Token { return b.Tok }
func (*base) node()              {}

type expr struct{ base }

func (*expr) exprNode() {}

type stmt struct{ base }

func (*stmt) stmtNode() {}

// --- Expressions ---

// Number is an integer literal
type Number struct {
	expr
	Value int64
}

// Float is a floating-point literal
type Float struct {
	expr
	Value float64
	// Text keeps the literal as written so it can be emitted unchanged
	Text string
}

// String is a string literal. Value holds the decoded contents
type String struct {
	expr
	Value string
}

// Ident is a variable read
type Ident struct {
	expr
	Name string
}

// BinaryOp covers arithmetic (+ - * /) and comparisons (== != < > <= >=)
type BinaryOp struct {
	expr
	Op          token.Type
	Left, Right Expr
}

// LogicalOp covers && and ||
type LogicalOp struct {
	expr
	Op          token.Type
	Left, Right Expr
}

// Not is the unary '!'
type Not struct {
	expr
	X Expr
}

// Call is a function call used as an expression
type Call struct {
	expr
	Name string
	Args []Expr
}

// --- Statements ---

// Program is the root of every tree
type Program struct {
	stmt
	Stmts []Stmt
}

// Assign binds `Name is Value;`
type Assign struct {
	stmt
	Name  string
	Value Expr
}

// ExprStmt is an expression evaluated for its effects, such as a call
type ExprStmt struct {
	stmt
	X Expr
}

// Print is `say(X);`
type Print struct {
	stmt
	X Expr
}

// Input is `Name is ask(Prompt);`. Prompt is nil when omitted
type Input struct {
	stmt
	Name   string
	Prompt Expr
}

// If is `check (Cond) { Then } otherwise { Else }`. HasElse distinguishes an
// empty 'otherwise' block from a missing one
type If struct {
	stmt
	Cond    Expr
	Then    []Stmt
	Else    []Stmt
	HasElse bool
}

// While is `keep (Cond) { Body }`
type While struct {
	stmt
	Cond Expr
	Body []Stmt
}

// Repeat is `repeat Count { Body }`
type Repeat struct {
	stmt
	Count Expr
	Body  []Stmt
}

// FuncDecl is `create Name(Params) { Body }`
type FuncDecl struct {
	stmt
	Name   string
	Params []string
	Body   []Stmt
}

// Return is `give X;`
type Return struct {
	stmt
	X Expr
}

// --- Constructors ---

func NewNumber(tok token.Token, value int64) *Number {
	return &Number{expr: expr{base{tok}}, Value: value}
}

func NewFloat(tok token.Token, value float64, text string) *Float {
	return &Float{expr: expr{base{tok}}, Value: value, Text: text}
}

func NewString(tok token.Token, value string) *String {
	return &String{expr: expr{base{tok}}, Value: value}
}

func NewIdent(tok token.Token, name string) *Ident {
	return &Ident{expr: expr{base{tok}}, Name: name}
}

func NewBinaryOp(tok token.Token, op token.Type, left, right Expr) *BinaryOp {
	return &BinaryOp{expr: expr{base{tok}}, Op: op, Left: left, Right: right}
}

func NewLogicalOp(tok token.Token, op token.Type, left, right Expr) *LogicalOp {
	return &LogicalOp{expr: expr{base{tok}}, Op: op, Left: left, Right: right}
}

func NewNot(tok token.Token, x Expr) *Not {
	return &Not{expr: expr{base{tok}}, X: x}
}

func NewCall(tok token.Token, name string, args []Expr) *Call {
	return &Call{expr: expr{base{tok}}, Name: name, Args: args}
}

func NewProgram(tok token.Token, stmts []Stmt) *Program {
	return &Program{stmt: stmt{base{tok}}, Stmts: stmts}
}

func NewAssign(tok token.Token, name string, value Expr) *Assign {
	return &Assign{stmt: stmt{base{tok}}, Name: name, Value: value}
}

func NewExprStmt(tok token.Token, x Expr) *ExprStmt {
	return &ExprStmt{stmt: stmt{base{tok}}, X: x}
}

func NewPrint(tok token.Token, x Expr) *Print {
	return &Print{stmt: stmt{base{tok}}, X: x}
}

func NewInput(tok token.Token, name string, prompt Expr) *Input {
	return &Input{stmt: stmt{base{tok}}, Name: name, Prompt: prompt}
}

func NewIf(tok token.Token, cond Expr, then, els []Stmt, hasElse bool) *If {
	return &If{stmt: stmt{base{tok}}, Cond: cond, Then: then, Else: els, HasElse: hasElse}
}

func NewWhile(tok token.Token, cond Expr, body []Stmt) *While {
	return &While{stmt: stmt{base{tok}}, Cond: cond, Body: body}
}

func NewRepeat(tok token.Token, count Expr, body []Stmt) *Repeat {
	return &Repeat{stmt: stmt{base{tok}}, Count: count, Body: body}
}

func NewFuncDecl(tok token.Token, name string, params []string, body []Stmt) *FuncDecl {
	return &FuncDecl{stmt: stmt{base{tok}}, Name: name, Params: params, Body: body}
}

func NewReturn(tok token.Token, x Expr) *Return {
	return &Return{stmt: stmt{base{tok}}, X: x}
}

// OpString returns the source spelling of an operator token
func OpString(op token.Type) string { return token.TypeStrings[op] }

// IsArithmetic reports whether op is one of + - * /
func IsArithmetic(op token.Type) bool {
	switch op {
	case token.Plus, token.Minus, token.Star, token.Slash:
		return true
	}
	return false
}
