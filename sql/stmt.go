package sql

import (
	"fmt"
)

type StatementKind int

const (
	SelectStatement StatementKind = iota
	InsertStatement
	UpdateStatement
	DeleteStatement
	CountStatement
)

var kindNames = map[StatementKind]string{
	SelectStatement: "SELECT",
	InsertStatement: "INSERT",
	UpdateStatement: "UPDATE",
	DeleteStatement: "DELETE",
	CountStatement:  "COUNT",
}

func (sk StatementKind) String() string {
	s, ok := kindNames[sk]
	if !ok {
		return fmt.Sprintf("StatementKind(%d)", sk)
	}
	return s
}

// NoLimit is the limit value meaning unbounded. Unlike omitting an offset,
// passing NoLimit to Statement.Limit still refines the statement.
const NoLimit int64 = -1

// Statement is a logical, not yet executed select, insert, update, delete,
// or count operation, progressively refined by the methods below. Each
// refinement returns the refined statement; implementations may mutate the
// receiver and return it, or return a new value.
type Statement interface {
	Kind() StatementKind

	// Where conjoins one more predicate onto the statement's filter.
	Where(p Predicate) Statement

	// OrderBy appends one ordering key; earlier keys sort first.
	OrderBy(column string, desc bool) Statement

	Offset(n int64) Statement
	Limit(n int64) Statement

	// Values attaches one or more sets of column assignments; more than one
	// set is only meaningful on an insert.
	Values(vals ...Values) Statement

	// Returning requests that the listed columns be reported back after an
	// insert or update.
	Returning(columns ...string) Statement

	// String returns a representation of the statement for diagnostics.
	String() string
}
