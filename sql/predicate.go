package sql

import (
	"fmt"
)

type Op int

const (
	EqualOp Op = iota
	NotEqualOp
	GreaterThanOp
	GreaterEqualOp
	LessThanOp
	LessEqualOp
	LikeOp
	InOp
)

var opNames = map[Op]string{
	EqualOp:        "=",
	NotEqualOp:     "!=",
	GreaterThanOp:  ">",
	GreaterEqualOp: ">=",
	LessThanOp:     "<",
	LessEqualOp:    "<=",
	LikeOp:         "LIKE",
	InOp:           "IN",
}

func (op Op) String() string {
	s, ok := opNames[op]
	if !ok {
		return fmt.Sprintf("Op(%d)", op)
	}
	return s
}

// Predicate is one boolean filter condition; predicates applied to a
// statement are conjoined in application order. It is a sealed value type
// constructed with Eq, Neq, Gt, Gte, Lt, Lte, Like, and In.
type Predicate struct {
	column string
	op     Op
	arg    Value
}

func (p Predicate) Column() string { return p.column }
func (p Predicate) Op() Op         { return p.op }
func (p Predicate) Arg() Value     { return p.arg }

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.column, p.op, p.arg)
}

func Eq(column string, arg Value) Predicate {
	return Predicate{column: column, op: EqualOp, arg: arg}
}

func Neq(column string, arg Value) Predicate {
	return Predicate{column: column, op: NotEqualOp, arg: arg}
}

func Gt(column string, arg Value) Predicate {
	return Predicate{column: column, op: GreaterThanOp, arg: arg}
}

func Gte(column string, arg Value) Predicate {
	return Predicate{column: column, op: GreaterEqualOp, arg: arg}
}

func Lt(column string, arg Value) Predicate {
	return Predicate{column: column, op: LessThanOp, arg: arg}
}

func Lte(column string, arg Value) Predicate {
	return Predicate{column: column, op: LessEqualOp, arg: arg}
}

func Like(column string, arg Value) Predicate {
	return Predicate{column: column, op: LikeOp, arg: arg}
}

// In matches any of args; an empty args list matches no rows.
func In(column string, args ...Value) Predicate {
	return Predicate{column: column, op: InOp, arg: args}
}

// SortOrder is the direction of one ordering key; Asc and Desc are the only
// recognized values.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// OrderBy is one ordering key; a list of ordering keys is applied in order as
// primary, secondary, and so on.
type OrderBy struct {
	Field string
	Order SortOrder
}
