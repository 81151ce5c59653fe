// Package ast defines the closed set of syntax nodes consumed by the espg
// compiler.
//
// The front end converts the parser's full ECMAScript tree into these nodes.
// Anything outside the supported subset becomes an *Unsupported node that
// remembers the original node kind, so later phases can report it instead of
// silently skipping it.
package ast

import (
	"bytes"
	"strconv"
	"strings"
)

// Pos is a 1-indexed source position.
type Pos struct {
	Line   int
	Column int
}

// Node is the interface for all AST nodes.
type Node interface {
	// Kind returns the node kind name used in diagnostics (e.g. "CallExpression").
	Kind() string
	Position() Pos
	String() string
}

// Statement is the interface for all statement nodes.
type Statement interface {
	Node
	statementNode()
}

// Expression is the interface for all expression nodes.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node of the AST.
type Program struct {
	Statements []Statement
}

func (p *Program) String() string {
	var out bytes.Buffer
	for i, s := range p.Statements {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(s.String())
	}
	return out.String()
}

// DeclKind is the keyword used by a variable declaration.
type DeclKind string

const (
	DeclVar   DeclKind = "var"
	DeclLet   DeclKind = "let"
	DeclConst DeclKind = "const"
)

// Declarator is a single `name = init` entry of a declaration.
// Init is nil when the declarator has no initializer.
type Declarator struct {
	Pos  Pos
	Name string
	Init Expression
}

// VarDecl represents a variable declaration statement.
// Example: let x = 1, y;
type VarDecl struct {
	Pos   Pos
	Decl  DeclKind
	Names []Declarator
}

func (d *VarDecl) statementNode()  {}
func (d *VarDecl) Kind() string    { return "VariableDeclaration" }
func (d *VarDecl) Position() Pos   { return d.Pos }
func (d *VarDecl) String() string {
	parts := make([]string, len(d.Names))
	for i, n := range d.Names {
		if n.Init != nil {
			parts[i] = n.Name + " = " + n.Init.String()
		} else {
			parts[i] = n.Name
		}
	}
	return string(d.Decl) + " " + strings.Join(parts, ", ") + ";"
}

// LiteralKind is the value category of a Literal.
type LiteralKind int

const (
	IntLiteral LiteralKind = iota
	FloatLiteral
	StringLiteral
	BoolLiteral
	NullLiteral
)

func (k LiteralKind) String() string {
	switch k {
	case IntLiteral:
		return "int"
	case FloatLiteral:
		return "float"
	case StringLiteral:
		return "string"
	case BoolLiteral:
		return "bool"
	case NullLiteral:
		return "null"
	default:
		return "unknown"
	}
}

// Literal represents a literal value. Only the field matching LitKind is meaningful.
type Literal struct {
	Pos     Pos
	LitKind LiteralKind
	Int     int64
	Float   float64
	Str     string
	Bool    bool
}

func (l *Literal) expressionNode() {}
func (l *Literal) Kind() string    { return "Literal" }
func (l *Literal) Position() Pos   { return l.Pos }
func (l *Literal) String() string {
	switch l.LitKind {
	case IntLiteral:
		return strconv.FormatInt(l.Int, 10)
	case FloatLiteral:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case StringLiteral:
		return strconv.Quote(l.Str)
	case BoolLiteral:
		return strconv.FormatBool(l.Bool)
	default:
		return "null"
	}
}

// Numeric returns the literal as a float64 and whether it is a number.
func (l *Literal) Numeric() (float64, bool) {
	switch l.LitKind {
	case IntLiteral:
		return float64(l.Int), true
	case FloatLiteral:
		return l.Float, true
	default:
		return 0, false
	}
}

// Value returns the literal as a plain Go value (int64, float64, string, bool or nil).
func (l *Literal) Value() any {
	switch l.LitKind {
	case IntLiteral:
		return l.Int
	case FloatLiteral:
		return l.Float
	case StringLiteral:
		return l.Str
	case BoolLiteral:
		return l.Bool
	default:
		return nil
	}
}

// Identifier represents a variable or function name.
type Identifier struct {
	Pos  Pos
	Name string
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) Kind() string    { return "Identifier" }
func (i *Identifier) Position() Pos   { return i.Pos }
func (i *Identifier) String() string  { return i.Name }

// BinaryExpr represents a binary operation.
// Example: a + b, a === b
type BinaryExpr struct {
	Pos      Pos
	Operator string
	Left     Expression
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}
func (b *BinaryExpr) Kind() string    { return "BinaryExpression" }
func (b *BinaryExpr) Position() Pos   { return b.Pos }
func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Operator + " " + b.Right.String() + ")"
}

// ConditionalExpr represents a ternary expression.
// Example: a === b ? x : y
type ConditionalExpr struct {
	Pos        Pos
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

func (c *ConditionalExpr) expressionNode() {}
func (c *ConditionalExpr) Kind() string    { return "ConditionalExpression" }
func (c *ConditionalExpr) Position() Pos   { return c.Pos }
func (c *ConditionalExpr) String() string {
	return "(" + c.Test.String() + " ? " + c.Consequent.String() + " : " + c.Alternate.String() + ")"
}

// CallExpr represents a function call.
type CallExpr struct {
	Pos       Pos
	Callee    Expression
	Arguments []Expression
}

func (c *CallExpr) expressionNode() {}
func (c *CallExpr) Kind() string    { return "CallExpression" }
func (c *CallExpr) Position() Pos   { return c.Pos }
func (c *CallExpr) String() string {
	args := make([]string, len(c.Arguments))
	for i, a := range c.Arguments {
		args[i] = a.String()
	}
	return c.Callee.String() + "(" + strings.Join(args, ", ") + ")"
}

// CalleeName returns the callee identifier name, or "" if the callee is not an identifier.
func (c *CallExpr) CalleeName() string {
	if id, ok := c.Callee.(*Identifier); ok {
		return id.Name
	}
	return ""
}

// AssignmentExpr represents an assignment.
// Operator is "=", "+=", "-=", or any other assignment operator the parser produced.
type AssignmentExpr struct {
	Pos      Pos
	Operator string
	Target   Expression
	Value    Expression
}

func (a *AssignmentExpr) expressionNode() {}
func (a *AssignmentExpr) Kind() string    { return "AssignmentExpression" }
func (a *AssignmentExpr) Position() Pos   { return a.Pos }
func (a *AssignmentExpr) String() string {
	return a.Target.String() + " " + a.Operator + " " + a.Value.String()
}

// FunctionLit represents a function expression or an arrow function with a block body.
type FunctionLit struct {
	Pos    Pos
	Name   string
	Params []string
	Body   *BlockStmt
}

func (f *FunctionLit) expressionNode() {}
func (f *FunctionLit) Kind() string    { return "FunctionExpression" }
func (f *FunctionLit) Position() Pos   { return f.Pos }
func (f *FunctionLit) String() string {
	return "function " + f.Name + "(" + strings.Join(f.Params, ", ") + ") " + f.Body.String()
}

// Property is a key/value entry of an object literal.
// Value is nil for shapes the front end does not model (spread, getters, ...).
type Property struct {
	Key   string
	Value Expression
}

// ObjectLit represents an object literal.
type ObjectLit struct {
	Pos        Pos
	Properties []Property
}

func (o *ObjectLit) expressionNode() {}
func (o *ObjectLit) Kind() string    { return "ObjectExpression" }
func (o *ObjectLit) Position() Pos   { return o.Pos }
func (o *ObjectLit) String() string {
	parts := make([]string, 0, len(o.Properties))
	for _, p := range o.Properties {
		v := "?"
		if p.Value != nil {
			v = p.Value.String()
		}
		parts = append(parts, p.Key+": "+v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ArrayLit represents an array literal. Holes are nil elements.
type ArrayLit struct {
	Pos      Pos
	Elements []Expression
}

func (a *ArrayLit) expressionNode() {}
func (a *ArrayLit) Kind() string    { return "ArrayExpression" }
func (a *ArrayLit) Position() Pos   { return a.Pos }
func (a *ArrayLit) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		if e != nil {
			parts[i] = e.String()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// BlockStmt represents a braced list of statements.
type BlockStmt struct {
	Pos        Pos
	Statements []Statement
}

func (b *BlockStmt) statementNode() {}
func (b *BlockStmt) Kind() string   { return "BlockStatement" }
func (b *BlockStmt) Position() Pos  { return b.Pos }
func (b *BlockStmt) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range b.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// ExpressionStmt wraps an expression used as a statement.
type ExpressionStmt struct {
	Pos        Pos
	Expression Expression
}

func (e *ExpressionStmt) statementNode() {}
func (e *ExpressionStmt) Kind() string   { return "ExpressionStatement" }
func (e *ExpressionStmt) Position() Pos  { return e.Pos }
func (e *ExpressionStmt) String() string { return e.Expression.String() + ";" }

// FunctionDecl represents a top-level `function name(...) { ... }` declaration.
type FunctionDecl struct {
	Pos    Pos
	Name   string
	Params []string
	Body   *BlockStmt
}

func (f *FunctionDecl) statementNode() {}
func (f *FunctionDecl) Kind() string   { return "FunctionDeclaration" }
func (f *FunctionDecl) Position() Pos  { return f.Pos }
func (f *FunctionDecl) String() string {
	return "function " + f.Name + "(" + strings.Join(f.Params, ", ") + ") " + f.Body.String()
}

// Unsupported stands in for any syntax outside the modeled subset.
// NodeKind is the original node kind (e.g. "IfStatement", "UnaryExpression").
type Unsupported struct {
	Pos      Pos
	NodeKind string
}

func (u *Unsupported) statementNode()  {}
func (u *Unsupported) expressionNode() {}
func (u *Unsupported) Kind() string    { return u.NodeKind }
func (u *Unsupported) Position() Pos   { return u.Pos }
func (u *Unsupported) String() string  { return "<" + u.NodeKind + ">" }
