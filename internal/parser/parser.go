// Package parser implements a recursive-descent, Pratt-style parser
// producing an ast.Program from a token stream.
package parser

import (
	"fmt"
	"strconv"

	"github.com/xirelogy/tela/internal/ast"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/token"
)

// precedence levels, lowest to highest.
const (
	_ int = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precCall
	precPrimary
)

var precedences = map[token.Type]int{
	token.OrOr:         precOr,
	token.AndAnd:       precAnd,
	token.Equal:        precEquality,
	token.NotEqual:     precEquality,
	token.Less:         precComparison,
	token.LessEqual:    precComparison,
	token.Greater:      precComparison,
	token.GreaterEqual: precComparison,
	token.Plus:         precAdditive,
	token.Minus:        precAdditive,
	token.Star:         precMultiplicative,
	token.Slash:        precMultiplicative,
	token.Percent:      precMultiplicative,
	token.LParen:       precCall,
}

const maxArgs = 255

// Parser consumes a lexer's tokens and builds an ast.Program.
type Parser struct {
	lex      *lexer.Lexer
	reporter *errs.Reporter

	cur  token.Token
	peek token.Token

	errors []string
}

// New creates a parser reading from lex, reporting into reporter (which may
// be nil).
func New(lex *lexer.Lexer, reporter *errs.Reporter) *Parser {
	p := &Parser{lex: lex, reporter: reporter}
	p.next()
	p.next()
	return p
}

// Errors returns plain-text parser errors accumulated so far (in addition to
// whatever was reported into the shared reporter, if any).
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

// ParseProgram parses a full source file into a Program, recovering from
// syntax errors by synchronizing at statement boundaries so multiple errors
// can be reported in one pass.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.Fn:
		return p.parseFuncDecl()
	case token.Let:
		return p.parseVarDecl(false)
	case token.Var:
		return p.parseVarDecl(true)
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.For:
		return p.parseFor()
	case token.Break:
		return p.parseBreak()
	case token.Continue:
		return p.parseContinue()
	case token.Return:
		return p.parseReturn()
	case token.Print:
		return p.parsePrint()
	case token.LBrace:
		return p.parseBlock()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	block := &ast.BlockStmt{Position: p.cur.Pos}
	p.expect(token.LBrace)
	for p.cur.Type != token.RBrace && p.cur.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
	}
	p.expect(token.RBrace)
	return block
}

func (p *Parser) parseVarDecl(mutable bool) *ast.VarDecl {
	decl := &ast.VarDecl{Position: p.cur.Pos, Mutable: mutable}
	p.next() // consume let/var
	if p.cur.Type != token.Ident {
		p.errorf("expected variable name, got %s", p.cur.Type)
		p.synchronize()
		return decl
	}
	decl.Name = p.cur.Literal
	p.next()
	if p.cur.Type == token.Assign {
		p.next()
		decl.Init = p.parseExpression(precAssignment)
	}
	p.expectSemicolon()
	return decl
}

func (p *Parser) parseIf() *ast.IfStmt {
	stmt := &ast.IfStmt{Position: p.cur.Pos}
	p.next() // consume if
	p.expect(token.LParen)
	stmt.Condition = p.parseExpression(precAssignment)
	p.expect(token.RParen)
	stmt.Then = p.parseBlock()
	if p.cur.Type == token.Else {
		p.next()
		if p.cur.Type == token.If {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseWhile() *ast.WhileStmt {
	stmt := &ast.WhileStmt{Position: p.cur.Pos}
	p.next() // consume while
	p.expect(token.LParen)
	stmt.Condition = p.parseExpression(precAssignment)
	p.expect(token.RParen)
	stmt.Body = p.parseBlock()
	return stmt
}

// parseFor desugars `for (init; cond; incr) body` at parse time into
// `{ init; while (cond) { body; incr; } }`.
func (p *Parser) parseFor() ast.Statement {
	pos := p.cur.Pos
	p.next() // consume for
	p.expect(token.LParen)

	outer := &ast.BlockStmt{Position: pos}

	if p.cur.Type != token.Semicolon {
		switch p.cur.Type {
		case token.Let:
			outer.Statements = append(outer.Statements, p.parseVarDecl(false))
		case token.Var:
			outer.Statements = append(outer.Statements, p.parseVarDecl(true))
		default:
			outer.Statements = append(outer.Statements, p.parseExprStatement())
		}
	} else {
		p.next()
	}

	var cond ast.Expression
	if p.cur.Type != token.Semicolon {
		cond = p.parseExpression(precAssignment)
	} else {
		cond = &ast.BoolLiteral{Position: p.cur.Pos, Value: true}
	}
	p.expect(token.Semicolon)

	var incr ast.Expression
	if p.cur.Type != token.RParen {
		incr = p.parseExpression(precAssignment)
	}
	p.expect(token.RParen)

	body := p.parseBlock()
	if incr != nil {
		body.Statements = append(body.Statements, &ast.ExprStmt{Position: incr.Pos(), Expression: incr})
	}

	outer.Statements = append(outer.Statements, &ast.WhileStmt{
		Position:  pos,
		Condition: cond,
		Body:      body,
	})
	return outer
}

func (p *Parser) parseBreak() *ast.BreakStmt {
	stmt := &ast.BreakStmt{Position: p.cur.Pos}
	p.next()
	p.expectSemicolon()
	return stmt
}

func (p *Parser) parseContinue() *ast.ContinueStmt {
	stmt := &ast.ContinueStmt{Position: p.cur.Pos}
	p.next()
	p.expectSemicolon()
	return stmt
}

func (p *Parser) parseReturn() *ast.ReturnStmt {
	stmt := &ast.ReturnStmt{Position: p.cur.Pos}
	p.next()
	if p.cur.Type != token.Semicolon {
		stmt.Value = p.parseExpression(precAssignment)
	}
	p.expectSemicolon()
	return stmt
}

func (p *Parser) parsePrint() *ast.PrintStmt {
	stmt := &ast.PrintStmt{Position: p.cur.Pos}
	p.next() // consume print
	p.expect(token.LParen)
	if p.cur.Type != token.RParen {
		stmt.Arguments = append(stmt.Arguments, p.parseExpression(precAssignment))
		for p.cur.Type == token.Comma {
			p.next()
			stmt.Arguments = append(stmt.Arguments, p.parseExpression(precAssignment))
		}
	}
	p.expect(token.RParen)
	p.expectSemicolon()
	return stmt
}

func (p *Parser) parseFuncDecl() *ast.FuncDecl {
	fn := &ast.FuncDecl{Position: p.cur.Pos}
	p.next() // consume fn
	if p.cur.Type != token.Ident {
		p.errorf("expected function name, got %s", p.cur.Type)
		p.synchronize()
		return fn
	}
	fn.Name = p.cur.Literal
	p.next()
	p.expect(token.LParen)
	for p.cur.Type != token.RParen && p.cur.Type != token.EOF {
		if p.cur.Type != token.Ident {
			p.errorf("expected parameter name, got %s", p.cur.Type)
			break
		}
		if len(fn.Params) >= maxArgs {
			p.errorf("function cannot declare more than %d parameters", maxArgs)
		}
		fn.Params = append(fn.Params, ast.Param{Name: p.cur.Literal, Position: p.cur.Pos})
		p.next()
		if p.cur.Type == token.Comma {
			p.next()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseExprStatement() *ast.ExprStmt {
	pos := p.cur.Pos
	expr := p.parseExpression(precAssignment)
	p.expectSemicolon()
	return &ast.ExprStmt{Position: pos, Expression: expr}
}

func (p *Parser) parseExpression(prec int) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for p.cur.Type != token.Semicolon && prec < p.curPrecedence() {
		switch p.cur.Type {
		case token.LParen:
			left = p.parseCall(left)
		default:
			left = p.parseInfix(left)
		}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.cur.Type {
	case token.Ident:
		ident := &ast.Identifier{Position: p.cur.Pos, Name: p.cur.Literal}
		p.next()
		if p.cur.Type == token.Assign {
			return p.parseAssign(ident)
		}
		return ident
	case token.Number:
		return p.parseNumber()
	case token.String:
		lit := &ast.StringLiteral{Position: p.cur.Pos, Value: p.cur.Literal}
		p.next()
		return lit
	case token.True:
		lit := &ast.BoolLiteral{Position: p.cur.Pos, Value: true}
		p.next()
		return lit
	case token.False:
		lit := &ast.BoolLiteral{Position: p.cur.Pos, Value: false}
		p.next()
		return lit
	case token.Nil:
		lit := &ast.NilLiteral{Position: p.cur.Pos}
		p.next()
		return lit
	case token.Bang, token.Minus:
		return p.parseUnary()
	case token.LParen:
		p.next()
		expr := p.parseExpression(precAssignment)
		p.expect(token.RParen)
		return expr
	default:
		p.errorf("unexpected token %s", p.cur.Type)
		p.next()
		return nil
	}
}

func (p *Parser) parseNumber() ast.Expression {
	lit := p.cur.Literal
	val, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.errorf("invalid number literal %q", lit)
	}
	node := &ast.NumberLiteral{Position: p.cur.Pos, Value: val}
	p.next()
	return node
}

func (p *Parser) parseUnary() ast.Expression {
	op := p.cur.Type
	pos := p.cur.Pos
	p.next()
	operand := p.parseExpression(precUnary)
	return &ast.UnaryExpr{Position: pos, Operator: op, Operand: operand}
}

func (p *Parser) parseAssign(target *ast.Identifier) ast.Expression {
	pos := p.cur.Pos
	p.next() // consume '='
	value := p.parseExpression(precAssignment)
	return &ast.AssignExpr{Position: pos, Target: target, Value: value}
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	op := p.cur.Type
	pos := p.cur.Pos
	prec := p.curPrecedence()
	p.next()
	right := p.parseExpression(prec)
	return &ast.BinaryExpr{Position: pos, Operator: op, Left: left, Right: right}
}

func (p *Parser) parseCall(callee ast.Expression) ast.Expression {
	pos := p.cur.Pos
	p.next() // consume '('
	call := &ast.CallExpr{Position: pos, Callee: callee}
	for p.cur.Type != token.RParen && p.cur.Type != token.EOF {
		call.Arguments = append(call.Arguments, p.parseExpression(precAssignment))
		if len(call.Arguments) > maxArgs {
			p.errorf("call cannot pass more than %d arguments", maxArgs)
		}
		if p.cur.Type == token.Comma {
			p.next()
			if p.cur.Type == token.RParen {
				p.errorf("unexpected trailing comma in argument list")
				break
			}
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return call
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.cur.Type]; ok {
		return prec
	}
	return 0
}

func (p *Parser) expect(t token.Type) bool {
	if p.cur.Type == t {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s", t, p.cur.Type)
	p.synchronize()
	return false
}

func (p *Parser) expectSemicolon() {
	p.expect(token.Semicolon)
}

// synchronize discards tokens until it has just consumed a `;` or the next
// token begins a new statement, allowing multiple errors per source.
func (p *Parser) synchronize() {
	for p.cur.Type != token.EOF {
		if p.cur.Type == token.Semicolon {
			p.next()
			return
		}
		switch p.cur.Type {
		case token.Fn, token.Let, token.Var, token.If, token.While, token.For,
			token.Break, token.Continue, token.Return, token.Print, token.RBrace:
			return
		}
		p.next()
	}
}

func (p *Parser) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
	if p.reporter != nil {
		p.reporter.Report(errs.Syntax, errs.Span{Line: p.cur.Pos.Line, Column: p.cur.Pos.Column}, format, args...)
	}
}
