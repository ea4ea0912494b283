// Package expr implements the arithmetic/logical expression tree (C2):
// numeric evaluation against a model context, code emission into the
// generated kernel's source text, and simplification into canonical flat
// form. The three operations are pure functions over a tagged variant,
// dispatched through the visitor pattern.
package expr

// Op identifies an arithmetic, logical or comparison operator.
type Op string

const (
	Plus  Op = "+"
	Minus Op = "-"
	Star  Op = "*"
	Slash Op = "/"
	And   Op = "AND"
	Or    Op = "OR"
	Not   Op = "NOT"
	Eq    Op = "=="
	Ne    Op = "!="
	Le    Op = "<="
	Lt    Op = "<"
	Ge    Op = ">="
	Gt    Op = ">"
)

// Expr is the common interface of every expression-tree node.
type Expr interface {
	Accept(v Visitor) interface{}
}

// Visitor dispatches over the expression variant. Evaluate, Emit and
// Simplify are each implemented as a Visitor.
type Visitor interface {
	VisitLiteral(e *Literal) interface{}
	VisitIdent(e *Ident) interface{}
	VisitVariable(e *Variable) interface{}
	VisitAlias(e *Alias) interface{}
	VisitUnary(e *Unary) interface{}
	VisitBinary(e *Binary) interface{}
	VisitTernary(e *Ternary) interface{}
	VisitParen(e *Paren) interface{}
	VisitFlat(e *Flat) interface{}
}

// Literal is a float constant.
type Literal struct{ Value float64 }

func (e *Literal) Accept(v Visitor) interface{} { return v.VisitLiteral(e) }

// Ident references another node's logical value by name.
type Ident struct{ Name string }

func (e *Ident) Accept(v Visitor) interface{} { return v.VisitIdent(e) }

// Variable references a model-level numeric variable by name.
type Variable struct{ Name string }

func (e *Variable) Accept(v Visitor) interface{} { return v.VisitVariable(e) }

// Alias references another attribute of the current node, textually, via a
// name beginning with '@' (the '@' is not part of Name).
type Alias struct{ Name string }

func (e *Alias) Accept(v Visitor) interface{} { return v.VisitAlias(e) }

// Unary is a prefix operator (+, -, NOT) applied to one operand.
type Unary struct {
	Op   Op
	Expr Expr
}

func (e *Unary) Accept(v Visitor) interface{} { return v.VisitUnary(e) }

// Binary is an infix operator applied to two operands.
type Binary struct {
	Op          Op
	Left, Right Expr
}

func (e *Binary) Accept(v Visitor) interface{} { return v.VisitBinary(e) }

// Ternary is `Cond ? Then : Else`.
type Ternary struct {
	Cond, Then, Else Expr
}

func (e *Ternary) Accept(v Visitor) interface{} { return v.VisitTernary(e) }

// Paren wraps an expression in source-level parentheses.
type Paren struct{ Expr Expr }

func (e *Paren) Accept(v Visitor) interface{} { return v.VisitParen(e) }

// Flat is the normalized form of an associative chain of one operator
// applied to N operands. It only arises as simplification output; it is
// never hand-constructed by a parser.
type Flat struct {
	Op    Op
	Exprs []Expr
}

func (e *Flat) Accept(v Visitor) interface{} { return v.VisitFlat(e) }
