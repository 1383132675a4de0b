// Package test provides a scripted engine for testing code built against
// sql.Engine. The engine records every compiled statement and its
// refinements, and serves results scripted ahead of time.
package test

import (
	"context"
	"fmt"
	"strings"

	"github.com/leftmike/miniorm/sql"
)

// Stmt is a logical statement recorded by the test engine; it implements
// sql.Statement by appending each refinement to itself.
type Stmt struct {
	Op      sql.StatementKind
	Table   string
	Preds   []sql.Predicate
	Order   []OrderKey
	OffsetN int64
	LimitN  int64
	Limited bool
	Vals    []sql.Values
	Ret     []string
}

type OrderKey struct {
	Column string
	Desc   bool
}

func (st *Stmt) Kind() sql.StatementKind {
	return st.Op
}

func (st *Stmt) Where(p sql.Predicate) sql.Statement {
	st.Preds = append(st.Preds, p)
	return st
}

func (st *Stmt) OrderBy(column string, desc bool) sql.Statement {
	st.Order = append(st.Order, OrderKey{Column: column, Desc: desc})
	return st
}

func (st *Stmt) Offset(n int64) sql.Statement {
	st.OffsetN = n
	return st
}

func (st *Stmt) Limit(n int64) sql.Statement {
	st.LimitN = n
	st.Limited = true
	return st
}

func (st *Stmt) Values(vals ...sql.Values) sql.Statement {
	st.Vals = append(st.Vals, vals...)
	return st
}

func (st *Stmt) Returning(columns ...string) sql.Statement {
	st.Ret = append(st.Ret, columns...)
	return st
}

func (st *Stmt) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s", st.Op, st.Table)
	for _, p := range st.Preds {
		fmt.Fprintf(&buf, " WHERE %s", p)
	}
	for _, o := range st.Order {
		if o.Desc {
			fmt.Fprintf(&buf, " ORDER BY %s DESC", o.Column)
		} else {
			fmt.Fprintf(&buf, " ORDER BY %s ASC", o.Column)
		}
	}
	if st.OffsetN > 0 {
		fmt.Fprintf(&buf, " OFFSET %d", st.OffsetN)
	}
	if st.Limited && st.LimitN != sql.NoLimit {
		fmt.Fprintf(&buf, " LIMIT %d", st.LimitN)
	}
	for _, vals := range st.Vals {
		fmt.Fprintf(&buf, " VALUES %s", vals)
	}
	if len(st.Ret) > 0 {
		fmt.Fprintf(&buf, " RETURNING %s", strings.Join(st.Ret, ", "))
	}
	return buf.String()
}

// RowsResult is a scripted query shaped result; it reports rows, one row or
// none, and a scalar taken from the first row.
type RowsResult struct {
	Rows   []sql.Values
	Scalrs []sql.Value
	Err    error
}

func (rr *RowsResult) FetchAll(ctx context.Context) ([]sql.Values, error) {
	if rr.Err != nil {
		return nil, rr.Err
	}
	return rr.Rows, nil
}

func (rr *RowsResult) FetchOne(ctx context.Context) (sql.Values, error) {
	if rr.Err != nil {
		return nil, rr.Err
	}
	if len(rr.Rows) == 0 {
		return nil, nil
	}
	return rr.Rows[0], nil
}

func (rr *RowsResult) Scalar(ctx context.Context) (sql.Value, error) {
	if rr.Err != nil {
		return nil, rr.Err
	}
	if len(rr.Scalrs) == 0 {
		return nil, nil
	}
	return rr.Scalrs[0], nil
}

// CountResult is a scripted exec shaped result; it reports an affected row
// count and optionally a generated key as its scalar.
type CountResult struct {
	Count int64
	Key   sql.Value
	Err   error
}

func (cr *CountResult) RowCount() (int64, error) {
	if cr.Err != nil {
		return 0, cr.Err
	}
	return cr.Count, nil
}

func (cr *CountResult) Scalar(ctx context.Context) (sql.Value, error) {
	if cr.Err != nil {
		return nil, cr.Err
	}
	return cr.Key, nil
}

// BareResult supports no extraction mode at all.
type BareResult struct{}

// Engine is a scripted sql.Engine. Script results ahead of time with Script;
// executed statements are recorded in Stmts in execution order.
type Engine struct {
	// Failures to inject.
	AcquireErr  error
	ExecuteErr  error
	BeginErr    error
	CommitErr   error
	RollbackErr error

	// Counters, maintained as the engine is used.
	Acquired   int
	Released   int
	Begun      int
	Committed  int
	RolledBack int

	Stmts   []*Stmt
	results []sql.Result
}

// Script appends results to be served, in order, by subsequent executions.
func (te *Engine) Script(results ...sql.Result) {
	te.results = append(te.results, results...)
}

func (te *Engine) compile(op sql.StatementKind, tt *sql.TableType) sql.Statement {
	return &Stmt{Op: op, Table: tt.Name()}
}

func (te *Engine) Select(tt *sql.TableType) sql.Statement {
	return te.compile(sql.SelectStatement, tt)
}

func (te *Engine) Insert(tt *sql.TableType) sql.Statement {
	return te.compile(sql.InsertStatement, tt)
}

func (te *Engine) Update(tt *sql.TableType) sql.Statement {
	return te.compile(sql.UpdateStatement, tt)
}

func (te *Engine) Delete(tt *sql.TableType) sql.Statement {
	return te.compile(sql.DeleteStatement, tt)
}

func (te *Engine) Count(tt *sql.TableType) sql.Statement {
	return te.compile(sql.CountStatement, tt)
}

func (te *Engine) Acquire(ctx context.Context) (sql.Conn, error) {
	if te.AcquireErr != nil {
		return nil, te.AcquireErr
	}
	te.Acquired += 1
	return &conn{te: te}, nil
}

// LastStmt returns the most recently executed statement.
func (te *Engine) LastStmt() *Stmt {
	if len(te.Stmts) == 0 {
		return nil
	}
	return te.Stmts[len(te.Stmts)-1]
}

type conn struct {
	te       *Engine
	released bool
}

func (c *conn) Execute(ctx context.Context, stmt sql.Statement) (sql.Result, error) {
	if c.released {
		panic("test: execute on a released connection")
	}

	c.te.Stmts = append(c.te.Stmts, stmt.(*Stmt))
	if c.te.ExecuteErr != nil {
		return nil, c.te.ExecuteErr
	}
	if len(c.te.results) == 0 {
		return &RowsResult{}, nil
	}
	res := c.te.results[0]
	c.te.results = c.te.results[1:]
	return res, nil
}

func (c *conn) Begin(ctx context.Context) (sql.Transaction, error) {
	if c.released {
		panic("test: begin on a released connection")
	}

	if c.te.BeginErr != nil {
		return nil, c.te.BeginErr
	}
	c.te.Begun += 1
	return &transaction{te: c.te}, nil
}

func (c *conn) Release() error {
	if c.released {
		panic("test: connection released twice")
	}
	c.released = true
	c.te.Released += 1
	return nil
}

type transaction struct {
	te   *Engine
	done bool
}

func (tx *transaction) Commit(ctx context.Context) error {
	if tx.done {
		panic("test: transaction finished twice")
	}
	tx.done = true

	if tx.te.CommitErr != nil {
		return tx.te.CommitErr
	}
	tx.te.Committed += 1
	return nil
}

func (tx *transaction) Rollback() error {
	if tx.done {
		panic("test: transaction finished twice")
	}
	tx.done = true

	if tx.te.RollbackErr != nil {
		return tx.te.RollbackErr
	}
	tx.te.RolledBack += 1
	return nil
}
