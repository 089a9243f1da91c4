package milp

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression Σ coef·var + Const.
type Expr struct {
	Terms []Term
	Const float64
}

// NewExpr starts an expression from the given terms.
func NewExpr(terms ...Term) Expr { return Expr{Terms: append([]Term(nil), terms...)} }

// T is shorthand for a Term.
func T(v Var, coef float64) Term { return Term{Var: v, Coef: coef} }

// Add appends coef·v and returns the expression for chaining.
func (e *Expr) Add(v Var, coef float64) *Expr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddConst adds a constant offset.
func (e *Expr) AddConst(c float64) *Expr {
	e.Const += c
	return e
}

// AddExpr appends all terms of o scaled by k.
func (e *Expr) AddExpr(o Expr, k float64) *Expr {
	for _, t := range o.Terms {
		e.Add(t.Var, t.Coef*k)
	}
	e.Const += o.Const * k
	return e
}

// Clone returns a deep copy.
func (e Expr) Clone() Expr {
	return Expr{Terms: append([]Term(nil), e.Terms...), Const: e.Const}
}

// Eval returns the value of the expression at x.
func (e Expr) Eval(x []float64) float64 {
	v := e.Const
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// Coefficients merges duplicate variables and returns a dense map.
func (e Expr) Coefficients() map[Var]float64 {
	m := make(map[Var]float64, len(e.Terms))
	for _, t := range e.Terms {
		m[t.Var] += t.Coef
	}
	return m
}
