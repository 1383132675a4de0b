package sql

import (
	"context"
)

// Compiler builds fresh logical statements for a table.
type Compiler interface {
	Select(tt *TableType) Statement
	Insert(tt *TableType) Statement
	Update(tt *TableType) Statement
	Delete(tt *TableType) Statement
	Count(tt *TableType) Statement
}

// Transaction is one connection scoped unit of work.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback() error
}

// Conn is one connection borrowed from the engine. A connection is owned by
// one unit of work at a time and must be released exactly once.
type Conn interface {
	Execute(ctx context.Context, stmt Statement) (Result, error)
	Begin(ctx context.Context) (Transaction, error)
	Release() error
}

// Engine is what the core requires from a database engine: statement
// compilation and scoped connections.
type Engine interface {
	Compiler
	Acquire(ctx context.Context) (Conn, error)
}

// Result is the handle returned by executing a statement. The extraction
// modes a result supports are discovered by type assertion against AllRows,
// OneRow, Scalar, and RowCount; asserting a mode the result does not
// implement is an execution failure, not a panic.
type Result interface{}

// AllRows is implemented by results that can report every row.
type AllRows interface {
	FetchAll(ctx context.Context) ([]Values, error)
}

// OneRow is implemented by results that can report their first row; a nil
// Values means no row, not an error.
type OneRow interface {
	FetchOne(ctx context.Context) (Values, error)
}

// Scalar is implemented by results that can report a single value, such as a
// count or a generated key.
type Scalar interface {
	Scalar(ctx context.Context) (Value, error)
}

// RowCount is implemented by results that can report the number of rows
// affected.
type RowCount interface {
	RowCount() (int64, error)
}
