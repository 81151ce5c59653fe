// Package codegen lowers the game-logic statements of a source file into the
// stack-based bytecode executed by the embedded runtime.
package codegen

import (
	"math"
	"strings"

	"github.com/zurustar/espg/pkg/bytecode"
	"github.com/zurustar/espg/pkg/compiler/ast"
	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/compiler/symtab"
)

// updateFunction is the only function declaration the runtime knows how to run.
const updateFunction = "update"

// builtin describes a whitelisted runtime call lowered to a single opcode.
type builtin struct {
	op    bytecode.Opcode
	arity int
}

var builtins = map[string]builtin{
	"moveSprite":   {bytecode.MoveSprite, 3},
	"setAnimation": {bytecode.SetAnimation, 2},
	"drawPixel":    {bytecode.DrawPixel, 3},
	"drawLine":     {bytecode.DrawLine, 5},
}

// EventHandler is a touch handler registered by onTouchPress.
// Handler is the byte offset of the handler body in the uncompressed stream.
type EventHandler struct {
	Kind    bytecode.EventKind
	X       uint16
	Y       uint16
	Radius  uint16
	Handler int32
}

// Output is the result of Generate.
type Output struct {
	// Code is the uncompressed stream, terminated by END.
	Code   []byte
	Events []EventHandler
}

// Generator converts game-logic statements to bytecode.
type Generator struct {
	vars   *symtab.Table
	buf    *bytecode.Buffer
	events []EventHandler
}

// New creates a new code generator that resolves identifiers against vars.
func New(vars *symtab.Table) *Generator {
	return &Generator{
		vars: vars,
		buf:  bytecode.NewBuffer(),
	}
}

// Generate lowers logic in order and appends END.
//
// Parameters:
//   - logic: Top-level expression statements and function declarations
//
// Returns:
//   - *Output: The bytecode stream and the collected touch handlers
//   - error: A diag.Error whose message names every enclosing node kind
func (g *Generator) Generate(logic []ast.Statement) (*Output, error) {
	for _, stmt := range logic {
		if err := g.generateStatement(stmt); err != nil {
			return nil, err
		}
	}
	g.buf.EmitOp(bytecode.End)

	code := make([]byte, g.buf.Pos())
	copy(code, g.buf.Bytes())
	return &Output{Code: code, Events: g.events}, nil
}

// generateStatement lowers a statement. Errors are wrapped with the statement kind.
func (g *Generator) generateStatement(stmt ast.Statement) error {
	return diag.WrapNode(stmt.Kind(), g.statement(stmt))
}

func (g *Generator) statement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		return g.generateEffect(s.Expression)
	case *ast.BlockStmt:
		return g.generateBlock(s)
	case *ast.FunctionDecl:
		if s.Name != updateFunction {
			return unsupported(s, "function %q is not supported, only %s() is run by the runtime", s.Name, updateFunction)
		}
		return g.generateBlock(s.Body)
	default:
		return unsupported(stmt, "unsupported statement %s", stmt.Kind())
	}
}

func (g *Generator) generateBlock(b *ast.BlockStmt) error {
	if b == nil {
		return nil
	}
	for _, stmt := range b.Statements {
		if err := g.generateStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

// generateEffect lowers the expression of an expression statement, which must
// be a call or an assignment.
func (g *Generator) generateEffect(expr ast.Expression) error {
	var err error
	switch e := expr.(type) {
	case *ast.CallExpr:
		err = g.generateCall(e)
	case *ast.AssignmentExpr:
		err = g.generateAssignment(e)
	default:
		return unsupported(expr, "expression statement must be a call or an assignment, got %s", expr.Kind())
	}
	return diag.WrapNode(expr.Kind(), err)
}

// generateAssignment lowers `x = e`, `x += e` and `x -= e`.
func (g *Generator) generateAssignment(a *ast.AssignmentExpr) error {
	target, ok := a.Target.(*ast.Identifier)
	if !ok {
		p := a.Target.Position()
		return diag.At(diag.InvalidAssignmentTarget, p.Line, p.Column,
			"assignment target must be a variable, got %s", a.Target.Kind())
	}
	idx, ok := g.vars.Lookup(target.Name)
	if !ok {
		return undefined(target)
	}

	switch a.Operator {
	case "=":
		if err := g.generateExpression(a.Value); err != nil {
			return err
		}
	case "+=", "-=":
		g.buf.EmitOp(bytecode.LoadVar)
		g.buf.EmitU8(uint8(idx))
		if err := g.generateExpression(a.Value); err != nil {
			return err
		}
		if a.Operator == "+=" {
			g.buf.EmitOp(bytecode.Add)
		} else {
			g.buf.EmitOp(bytecode.Sub)
		}
	default:
		return diag.At(diag.UnsupportedOperator, a.Pos.Line, a.Pos.Column,
			"unsupported assignment operator %s", a.Operator)
	}

	g.buf.EmitOp(bytecode.StoreVar)
	g.buf.EmitU8(uint8(idx))
	return nil
}

func (g *Generator) generateCall(c *ast.CallExpr) error {
	name := c.CalleeName()
	if name == "" {
		return unsupported(c, "callee must be a function name, got %s", c.Callee.Kind())
	}

	switch name {
	case "onTouchPress":
		return g.generateTouchPress(c)
	case "drawRect":
		return g.generateDrawRect(c)
	}

	b, ok := builtins[name]
	if !ok {
		return unsupported(c, "unknown function %s", name)
	}
	if len(c.Arguments) != b.arity {
		return unsupported(c, "%s expects %d arguments, got %d", name, b.arity, len(c.Arguments))
	}
	if err := g.generateArguments(c.Arguments); err != nil {
		return err
	}
	g.buf.EmitOp(b.op)
	return nil
}

func (g *Generator) generateArguments(args []ast.Expression) error {
	for _, arg := range args {
		if err := g.generateExpression(arg); err != nil {
			return err
		}
	}
	return nil
}

// generateDrawRect lowers drawRect(x, y, w, h, color[, filled]).
// The filled flag must be a literal and is always pushed.
func (g *Generator) generateDrawRect(c *ast.CallExpr) error {
	if n := len(c.Arguments); n != 5 && n != 6 {
		return unsupported(c, "drawRect expects 5 or 6 arguments, got %d", n)
	}
	if err := g.generateArguments(c.Arguments[:5]); err != nil {
		return err
	}

	var filled int32
	if len(c.Arguments) == 6 {
		lit, ok := c.Arguments[5].(*ast.Literal)
		switch {
		case ok && lit.LitKind == ast.BoolLiteral:
			if lit.Bool {
				filled = 1
			}
		case ok && lit.LitKind == ast.IntLiteral:
			if lit.Int != 0 {
				filled = 1
			}
		default:
			return unsupported(c.Arguments[5], "drawRect filled flag must be a boolean literal, got %s", c.Arguments[5].Kind())
		}
	}
	g.buf.EmitOp(bytecode.LoadInt)
	g.buf.EmitInt32(filled)
	g.buf.EmitOp(bytecode.DrawRect)
	return nil
}

// generateTouchPress lowers onTouchPress(x, y, radius, handler) to an
// ON_EVENT instruction followed by the handler body and RETURN.
func (g *Generator) generateTouchPress(c *ast.CallExpr) error {
	if len(c.Arguments) != 4 {
		return unsupported(c, "onTouchPress expects 4 arguments, got %d", len(c.Arguments))
	}

	var coords [3]uint16
	for i, arg := range c.Arguments[:3] {
		v, err := relativeCoordinate(arg)
		if err != nil {
			return err
		}
		coords[i] = v
	}

	fn, ok := c.Arguments[3].(*ast.FunctionLit)
	if !ok {
		return unsupported(c.Arguments[3], "onTouchPress handler must be a function, got %s", c.Arguments[3].Kind())
	}

	handler := g.buf.EmitOnEvent(bytecode.TouchPress, coords[0], coords[1], coords[2])
	g.events = append(g.events, EventHandler{
		Kind:    bytecode.TouchPress,
		X:       coords[0],
		Y:       coords[1],
		Radius:  coords[2],
		Handler: handler,
	})
	if err := diag.WrapNode(fn.Kind(), g.generateBlock(fn.Body)); err != nil {
		return err
	}
	g.buf.EmitOp(bytecode.Return)
	return nil
}

// relativeCoordinate scales a numeric literal in [0, 1] to [0, 65535],
// truncating toward zero.
func relativeCoordinate(arg ast.Expression) (uint16, error) {
	p := arg.Position()
	lit, ok := arg.(*ast.Literal)
	if !ok {
		return 0, diag.At(diag.InvalidCoordinate, p.Line, p.Column,
			"touch coordinates must be numeric literals, got %s", arg.Kind())
	}
	v, ok := lit.Numeric()
	if !ok {
		return 0, diag.At(diag.InvalidCoordinate, p.Line, p.Column,
			"touch coordinates must be numeric literals, got %s literal", lit.LitKind)
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, diag.At(diag.InvalidCoordinate, p.Line, p.Column,
			"touch coordinate %s is outside [0, 1]", lit)
	}
	return uint16(v * 65535), nil
}

func (g *Generator) generateExpression(expr ast.Expression) error {
	return diag.WrapNode(expr.Kind(), g.expression(expr))
}

func (g *Generator) expression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Literal:
		return g.generateLiteral(e)
	case *ast.Identifier:
		idx, ok := g.vars.Lookup(e.Name)
		if !ok {
			return undefined(e)
		}
		g.buf.EmitOp(bytecode.LoadVar)
		g.buf.EmitU8(uint8(idx))
		return nil
	case *ast.BinaryExpr:
		return g.generateBinary(e)
	case *ast.ConditionalExpr:
		return g.generateConditional(e)
	default:
		return unsupported(expr, "unsupported expression %s", expr.Kind())
	}
}

func (g *Generator) generateLiteral(l *ast.Literal) error {
	switch l.LitKind {
	case ast.IntLiteral:
		if l.Int < math.MinInt32 || l.Int > math.MaxInt32 {
			return unsupported(l, "integer %d does not fit in 32 bits", l.Int)
		}
		g.buf.EmitOp(bytecode.LoadInt)
		g.buf.EmitInt32(int32(l.Int))
	case ast.BoolLiteral:
		var v int32
		if l.Bool {
			v = 1
		}
		g.buf.EmitOp(bytecode.LoadInt)
		g.buf.EmitInt32(v)
	case ast.StringLiteral:
		if strings.IndexByte(l.Str, 0) >= 0 {
			return unsupported(l, "string literal contains a NUL byte")
		}
		g.buf.EmitOp(bytecode.LoadString)
		g.buf.EmitString(l.Str)
	default:
		return unsupported(l, "unsupported %s literal %s", l.LitKind, l)
	}
	return nil
}

func (g *Generator) generateBinary(b *ast.BinaryExpr) error {
	var op bytecode.Opcode
	switch b.Operator {
	case "+":
		op = bytecode.Add
	case "-":
		op = bytecode.Sub
	default:
		// === is only meaningful as the test of a conditional expression
		return diag.At(diag.UnsupportedOperator, b.Pos.Line, b.Pos.Column,
			"unsupported operator %s", b.Operator)
	}
	if err := g.generateExpression(b.Left); err != nil {
		return err
	}
	if err := g.generateExpression(b.Right); err != nil {
		return err
	}
	g.buf.EmitOp(op)
	return nil
}

// generateConditional lowers `a === b ? x : y`:
//
//	a b IF_EQ(->else) x JUMP(->end) else: y end:
//
// IF_EQ pops both operands and jumps when they differ.
func (g *Generator) generateConditional(c *ast.ConditionalExpr) error {
	test, ok := c.Test.(*ast.BinaryExpr)
	if !ok || test.Operator != "===" {
		p := c.Test.Position()
		desc := c.Test.Kind()
		if ok {
			desc = "operator " + test.Operator
		}
		return diag.At(diag.UnsupportedOperator, p.Line, p.Column,
			"conditional test must be an === comparison, got %s", desc)
	}
	if err := g.generateExpression(test.Left); err != nil {
		return err
	}
	if err := g.generateExpression(test.Right); err != nil {
		return err
	}

	ifEq := g.buf.EmitJump(bytecode.IfEq)
	if err := g.generateExpression(c.Consequent); err != nil {
		return err
	}
	jump := g.buf.EmitJump(bytecode.Jump)

	g.buf.PatchJump(ifEq, g.buf.Pos())
	if err := g.generateExpression(c.Alternate); err != nil {
		return err
	}
	g.buf.PatchJump(jump, g.buf.Pos())
	return nil
}

func unsupported(n ast.Node, format string, args ...any) error {
	p := n.Position()
	return diag.At(diag.UnsupportedNode, p.Line, p.Column, format, args...)
}

func undefined(id *ast.Identifier) error {
	return diag.At(diag.UndefinedVariable, id.Pos.Line, id.Pos.Column, "undefined variable %s", id.Name)
}
