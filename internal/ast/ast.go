// Package ast defines the syntax tree produced by the parser.
package ast

import "github.com/xirelogy/tela/internal/token"

// Node is the root interface implemented by every AST node.
type Node interface {
	Pos() token.Position
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
}

// Program is an ordered sequence of top-level statements.
type Program struct {
	Statements []Statement
}

func (p *Program) Pos() token.Position {
	if len(p.Statements) == 0 {
		return token.Position{Line: 1, Column: 0}
	}
	return p.Statements[0].Pos()
}

// BlockStmt is an ordered sequence of statements introducing a new scope.
type BlockStmt struct {
	Position   token.Position
	Statements []Statement
}

func (b *BlockStmt) Pos() token.Position { return b.Position }
func (*BlockStmt) statementNode()        {}

// ExprStmt is an expression evaluated for its side effect.
type ExprStmt struct {
	Position   token.Position
	Expression Expression
}

func (e *ExprStmt) Pos() token.Position { return e.Position }
func (*ExprStmt) statementNode()        {}

// VarDecl declares a name bound to an optional initializer.
// Mutable is true for `var`, false for `let`.
type VarDecl struct {
	Position token.Position
	Name     string
	Init     Expression // nil if omitted
	Mutable  bool
}

func (v *VarDecl) Pos() token.Position { return v.Position }
func (*VarDecl) statementNode()        {}

// IfStmt is a conditional with an optional else branch. Else, when present,
// is either a *BlockStmt or a nested *IfStmt (for `else if` chains).
type IfStmt struct {
	Position  token.Position
	Condition Expression
	Then      *BlockStmt
	Else      Statement
}

func (i *IfStmt) Pos() token.Position { return i.Position }
func (*IfStmt) statementNode()        {}

// WhileStmt loops while Condition is truthy.
type WhileStmt struct {
	Position  token.Position
	Condition Expression
	Body      *BlockStmt
}

func (w *WhileStmt) Pos() token.Position { return w.Position }
func (*WhileStmt) statementNode()        {}

// BreakStmt exits the nearest enclosing loop.
type BreakStmt struct {
	Position token.Position
}

func (b *BreakStmt) Pos() token.Position { return b.Position }
func (*BreakStmt) statementNode()        {}

// ContinueStmt jumps to the next iteration of the nearest enclosing loop.
type ContinueStmt struct {
	Position token.Position
}

func (c *ContinueStmt) Pos() token.Position { return c.Position }
func (*ContinueStmt) statementNode()        {}

// ReturnStmt returns from the enclosing function, optionally with a value.
type ReturnStmt struct {
	Position token.Position
	Value    Expression // nil if omitted
}

func (r *ReturnStmt) Pos() token.Position { return r.Position }
func (*ReturnStmt) statementNode()        {}

// PrintStmt is the dedicated `print(args...)` statement form.
type PrintStmt struct {
	Position  token.Position
	Arguments []Expression
}

func (p *PrintStmt) Pos() token.Position { return p.Position }
func (*PrintStmt) statementNode()        {}

// Param is one formal parameter of a function declaration.
type Param struct {
	Name     string
	Position token.Position
}

// FuncDecl declares a named function.
type FuncDecl struct {
	Position token.Position
	Name     string
	Params   []Param
	Body     *BlockStmt
}

func (f *FuncDecl) Pos() token.Position { return f.Position }
func (*FuncDecl) statementNode()        {}

// Identifier is a reference to a variable, global, or function by name.
type Identifier struct {
	Position token.Position
	Name     string
}

func (i *Identifier) Pos() token.Position { return i.Position }
func (*Identifier) expressionNode()       {}

// NumberLiteral is a parsed IEEE-754 double literal.
type NumberLiteral struct {
	Position token.Position
	Value    float64
}

func (n *NumberLiteral) Pos() token.Position { return n.Position }
func (*NumberLiteral) expressionNode()       {}

// StringLiteral is a parsed, escape-processed string literal.
type StringLiteral struct {
	Position token.Position
	Value    string
}

func (s *StringLiteral) Pos() token.Position { return s.Position }
func (*StringLiteral) expressionNode()       {}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	Position token.Position
	Value    bool
}

func (b *BoolLiteral) Pos() token.Position { return b.Position }
func (*BoolLiteral) expressionNode()       {}

// NilLiteral is the `nil` literal.
type NilLiteral struct {
	Position token.Position
}

func (n *NilLiteral) Pos() token.Position { return n.Position }
func (*NilLiteral) expressionNode()       {}

// UnaryExpr is a prefix unary operation: `-x` or `!x`.
type UnaryExpr struct {
	Position token.Position
	Operator token.Type
	Operand  Expression
}

func (u *UnaryExpr) Pos() token.Position { return u.Position }
func (*UnaryExpr) expressionNode()       {}

// BinaryExpr is an infix binary operation, including short-circuit `&&`/`||`.
type BinaryExpr struct {
	Position token.Position
	Operator token.Type
	Left     Expression
	Right    Expression
}

func (b *BinaryExpr) Pos() token.Position { return b.Position }
func (*BinaryExpr) expressionNode()       {}

// CallExpr invokes Callee with a positional argument list.
type CallExpr struct {
	Position  token.Position
	Callee    Expression
	Arguments []Expression
}

func (c *CallExpr) Pos() token.Position { return c.Position }
func (*CallExpr) expressionNode()       {}

// AssignExpr assigns Value to the variable named by Target.
type AssignExpr struct {
	Position token.Position
	Target   *Identifier
	Value    Expression
}

func (a *AssignExpr) Pos() token.Position { return a.Position }
func (*AssignExpr) expressionNode()       {}
