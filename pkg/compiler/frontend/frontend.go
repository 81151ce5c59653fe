// Package frontend parses JavaScript configuration sources and converts the
// resulting tree into the closed node set of package ast.
//
// Parsing is delegated to goja's ECMAScript parser. The conversion keeps every
// shape the compiler consumes (declarations, literals, identifiers, binary and
// conditional expressions, calls, assignments, blocks, function declarations
// and function literals, object and array literals) and turns everything else
// into *ast.Unsupported carrying the original node kind.
package frontend

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	gojaast "github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"

	"github.com/zurustar/espg/pkg/compiler/ast"
	"github.com/zurustar/espg/pkg/compiler/diag"
)

// Parse parses source and returns the converted program.
//
// Parameters:
//   - filename: Name used in parser diagnostics
//   - source: UTF-8 source text
//
// Returns:
//   - *ast.Program: The converted program
//   - error: A diag.ParseError with line, column and source context on malformed input
func Parse(filename, source string) (*ast.Program, error) {
	prog, err := parser.ParseFile(nil, filename, source, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, parseError(err, source)
	}

	c := newConverter(source)
	out := &ast.Program{Statements: make([]ast.Statement, 0, len(prog.Body))}
	for _, stmt := range prog.Body {
		if s := c.statement(stmt); s != nil {
			out.Statements = append(out.Statements, s)
		}
	}
	return out, nil
}

// parseError converts a goja parser error into a diag.Error with context.
func parseError(err error, source string) error {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		e := diag.At(diag.ParseError, first.Position.Line, first.Position.Column, "%s", first.Message)
		if len(list) > 1 {
			e.Message = fmt.Sprintf("%s (and %d more errors)", first.Message, len(list)-1)
		}
		return diag.WithContext(e, source)
	}
	var single *parser.Error
	if errors.As(err, &single) {
		return diag.WithContext(diag.At(diag.ParseError, single.Position.Line, single.Position.Column, "%s", single.Message), source)
	}
	return diag.Wrap(diag.ParseError, err, "failed to parse source")
}

// converter maps goja nodes to ast nodes and resolves positions.
type converter struct {
	source     string
	lineStarts []int
}

func newConverter(source string) *converter {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &converter{source: source, lineStarts: starts}
}

// pos converts a goja index (1-based byte offset for a single parsed file)
// into a 1-indexed line and column. Columns count runes.
func (c *converter) pos(idx file.Idx) ast.Pos {
	offset := int(idx) - 1
	if offset < 0 {
		return ast.Pos{}
	}
	if offset > len(c.source) {
		offset = len(c.source)
	}
	line := sort.Search(len(c.lineStarts), func(i int) bool { return c.lineStarts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	col := utf8.RuneCountInString(c.source[c.lineStarts[line]:offset]) + 1
	return ast.Pos{Line: line + 1, Column: col}
}

func (c *converter) statement(stmt gojaast.Statement) ast.Statement {
	switch s := stmt.(type) {
	case *gojaast.EmptyStatement:
		return nil
	case *gojaast.VariableStatement:
		return c.declaration(s.Idx0(), ast.DeclVar, s.List)
	case *gojaast.LexicalDeclaration:
		kind := ast.DeclLet
		if s.Token == token.CONST {
			kind = ast.DeclConst
		}
		return c.declaration(s.Idx0(), kind, s.List)
	case *gojaast.ExpressionStatement:
		return &ast.ExpressionStmt{Pos: c.pos(s.Idx0()), Expression: c.expression(s.Expression)}
	case *gojaast.BlockStatement:
		return c.block(s)
	case *gojaast.FunctionDeclaration:
		fn := s.Function
		decl := &ast.FunctionDecl{
			Pos:    c.pos(s.Idx0()),
			Params: c.params(fn.ParameterList),
			Body:   c.block(fn.Body),
		}
		if fn.Name != nil {
			decl.Name = fn.Name.Name.String()
		}
		return decl
	default:
		return c.unsupported(stmt)
	}
}

func (c *converter) declaration(idx file.Idx, kind ast.DeclKind, list []*gojaast.Binding) ast.Statement {
	decl := &ast.VarDecl{Pos: c.pos(idx), Decl: kind}
	for _, b := range list {
		id, ok := b.Target.(*gojaast.Identifier)
		if !ok {
			// destructuring patterns are outside the supported subset
			return &ast.Unsupported{Pos: c.pos(b.Idx0()), NodeKind: "VariableDeclaration(pattern)"}
		}
		d := ast.Declarator{Pos: c.pos(id.Idx0()), Name: id.Name.String()}
		if b.Initializer != nil {
			d.Init = c.expression(b.Initializer)
		}
		decl.Names = append(decl.Names, d)
	}
	return decl
}

func (c *converter) block(b *gojaast.BlockStatement) *ast.BlockStmt {
	if b == nil {
		return &ast.BlockStmt{}
	}
	out := &ast.BlockStmt{Pos: c.pos(b.Idx0())}
	for _, stmt := range b.List {
		if s := c.statement(stmt); s != nil {
			out.Statements = append(out.Statements, s)
		}
	}
	return out
}

func (c *converter) params(list *gojaast.ParameterList) []string {
	if list == nil {
		return nil
	}
	names := make([]string, 0, len(list.List))
	for _, b := range list.List {
		if id, ok := b.Target.(*gojaast.Identifier); ok {
			names = append(names, id.Name.String())
		}
	}
	return names
}

func (c *converter) expression(expr gojaast.Expression) ast.Expression {
	switch e := expr.(type) {
	case *gojaast.NumberLiteral:
		return c.number(e.Idx0(), e.Value, false)
	case *gojaast.StringLiteral:
		return &ast.Literal{Pos: c.pos(e.Idx0()), LitKind: ast.StringLiteral, Str: e.Value.String()}
	case *gojaast.BooleanLiteral:
		return &ast.Literal{Pos: c.pos(e.Idx0()), LitKind: ast.BoolLiteral, Bool: e.Value}
	case *gojaast.NullLiteral:
		return &ast.Literal{Pos: c.pos(e.Idx0()), LitKind: ast.NullLiteral}
	case *gojaast.Identifier:
		return &ast.Identifier{Pos: c.pos(e.Idx0()), Name: e.Name.String()}
	case *gojaast.UnaryExpression:
		// -<number> is folded so negative constants behave like literals
		if num, ok := e.Operand.(*gojaast.NumberLiteral); ok && e.Operator == token.MINUS && !e.Postfix {
			return c.number(e.Idx0(), num.Value, true)
		}
		return c.unsupported(expr)
	case *gojaast.BinaryExpression:
		return &ast.BinaryExpr{
			Pos:      c.pos(e.Left.Idx0()),
			Operator: e.Operator.String(),
			Left:     c.expression(e.Left),
			Right:    c.expression(e.Right),
		}
	case *gojaast.ConditionalExpression:
		return &ast.ConditionalExpr{
			Pos:        c.pos(e.Idx0()),
			Test:       c.expression(e.Test),
			Consequent: c.expression(e.Consequent),
			Alternate:  c.expression(e.Alternate),
		}
	case *gojaast.CallExpression:
		call := &ast.CallExpr{Pos: c.pos(e.Idx0()), Callee: c.expression(e.Callee)}
		for _, arg := range e.ArgumentList {
			call.Arguments = append(call.Arguments, c.expression(arg))
		}
		return call
	case *gojaast.AssignExpression:
		op := "="
		if e.Operator != token.ASSIGN {
			// compound assignments carry the binary operator (PLUS for +=)
			op = e.Operator.String() + "="
		}
		return &ast.AssignmentExpr{
			Pos:      c.pos(e.Idx0()),
			Operator: op,
			Target:   c.expression(e.Left),
			Value:    c.expression(e.Right),
		}
	case *gojaast.FunctionLiteral:
		fn := &ast.FunctionLit{
			Pos:    c.pos(e.Idx0()),
			Params: c.params(e.ParameterList),
			Body:   c.block(e.Body),
		}
		if e.Name != nil {
			fn.Name = e.Name.Name.String()
		}
		return fn
	case *gojaast.ArrowFunctionLiteral:
		body, ok := e.Body.(*gojaast.BlockStatement)
		if !ok {
			return &ast.Unsupported{Pos: c.pos(e.Idx0()), NodeKind: "ArrowFunctionExpression(expression body)"}
		}
		return &ast.FunctionLit{
			Pos:    c.pos(e.Idx0()),
			Params: c.params(e.ParameterList),
			Body:   c.block(body),
		}
	case *gojaast.ObjectLiteral:
		return c.object(e)
	case *gojaast.ArrayLiteral:
		arr := &ast.ArrayLit{Pos: c.pos(e.Idx0())}
		for _, el := range e.Value {
			if el == nil {
				arr.Elements = append(arr.Elements, nil)
				continue
			}
			arr.Elements = append(arr.Elements, c.expression(el))
		}
		return arr
	default:
		return c.unsupported(expr)
	}
}

func (c *converter) number(idx file.Idx, value any, negate bool) ast.Expression {
	p := c.pos(idx)
	switch v := value.(type) {
	case int64:
		if negate {
			v = -v
		}
		return &ast.Literal{Pos: p, LitKind: ast.IntLiteral, Int: v}
	case int:
		if negate {
			v = -v
		}
		return &ast.Literal{Pos: p, LitKind: ast.IntLiteral, Int: int64(v)}
	case float64:
		if negate {
			v = -v
		}
		return &ast.Literal{Pos: p, LitKind: ast.FloatLiteral, Float: v}
	default:
		return &ast.Unsupported{Pos: p, NodeKind: "NumericLiteral"}
	}
}

func (c *converter) object(o *gojaast.ObjectLiteral) *ast.ObjectLit {
	out := &ast.ObjectLit{Pos: c.pos(o.Idx0())}
	for _, prop := range o.Value {
		switch p := prop.(type) {
		case *gojaast.PropertyKeyed:
			if p.Computed {
				continue
			}
			key, ok := propertyKey(p.Key)
			if !ok {
				continue
			}
			var value ast.Expression
			if p.Kind == gojaast.PropertyKindValue {
				value = c.expression(p.Value)
			}
			out.Properties = append(out.Properties, ast.Property{Key: key, Value: value})
		case *gojaast.PropertyShort:
			out.Properties = append(out.Properties, ast.Property{
				Key:   p.Name.Name.String(),
				Value: &ast.Identifier{Pos: c.pos(p.Name.Idx0()), Name: p.Name.Name.String()},
			})
		}
	}
	return out
}

func propertyKey(key gojaast.Expression) (string, bool) {
	switch k := key.(type) {
	case *gojaast.StringLiteral:
		return k.Value.String(), true
	case *gojaast.Identifier:
		return k.Name.String(), true
	case *gojaast.NumberLiteral:
		return k.Literal, true
	default:
		return "", false
	}
}

// unsupported records the goja node kind, e.g. "IfStatement" for *ast.IfStatement.
func (c *converter) unsupported(n gojaast.Node) *ast.Unsupported {
	return &ast.Unsupported{Pos: c.pos(n.Idx0()), NodeKind: nodeKind(n)}
}

func nodeKind(n gojaast.Node) string {
	name := fmt.Sprintf("%T", n)
	// "*ast.IfStatement" -> "IfStatement"
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
