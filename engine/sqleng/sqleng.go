// Package sqleng is a sql.Engine over a database/sql database. Statements
// are compiled to SQL text with squirrel, connections and row mapping come
// from sqlx, and transactions map onto the database's own transactions.
//
// Row returning statements, meaning selects, counts, and any statement with a
// RETURNING clause, are fully drained at execution; the result they report
// does not hold database resources.
package sqleng

import (
	"context"
	gosql "database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/leftmike/miniorm/sql"
)

// Stmt is one compiled statement. It implements sql.Statement by refining the
// underlying squirrel builder in place.
type Stmt struct {
	kind sql.StatementKind
	tt   *sql.TableType

	sel sq.SelectBuilder
	ins sq.InsertBuilder
	upd sq.UpdateBuilder
	del sq.DeleteBuilder

	insertCols []string
	returning  bool
}

func (st *Stmt) Kind() sql.StatementKind {
	return st.kind
}

func sqlizer(p sql.Predicate) sq.Sqlizer {
	column, arg := p.Column(), p.Arg()
	switch p.Op() {
	case sql.EqualOp, sql.InOp:
		return sq.Eq{column: arg}
	case sql.NotEqualOp:
		return sq.NotEq{column: arg}
	case sql.GreaterThanOp:
		return sq.Gt{column: arg}
	case sql.GreaterEqualOp:
		return sq.GtOrEq{column: arg}
	case sql.LessThanOp:
		return sq.Lt{column: arg}
	case sql.LessEqualOp:
		return sq.LtOrEq{column: arg}
	case sql.LikeOp:
		return sq.Like{column: arg}
	}
	panic(fmt.Sprintf("sqleng: unexpected predicate operator %s", p.Op()))
}

func (st *Stmt) Where(p sql.Predicate) sql.Statement {
	w := sqlizer(p)
	switch st.kind {
	case sql.SelectStatement, sql.CountStatement:
		st.sel = st.sel.Where(w)
	case sql.UpdateStatement:
		st.upd = st.upd.Where(w)
	case sql.DeleteStatement:
		st.del = st.del.Where(w)
	default:
		panic(fmt.Sprintf("sqleng: where on %s statement", st.kind))
	}
	return st
}

func (st *Stmt) OrderBy(column string, desc bool) sql.Statement {
	if st.kind != sql.SelectStatement {
		panic(fmt.Sprintf("sqleng: order by on %s statement", st.kind))
	}
	if desc {
		st.sel = st.sel.OrderBy(column + " DESC")
	} else {
		st.sel = st.sel.OrderBy(column + " ASC")
	}
	return st
}

func (st *Stmt) Offset(n int64) sql.Statement {
	if st.kind != sql.SelectStatement {
		panic(fmt.Sprintf("sqleng: offset on %s statement", st.kind))
	}
	st.sel = st.sel.Offset(uint64(n))
	return st
}

func (st *Stmt) Limit(n int64) sql.Statement {
	if st.kind != sql.SelectStatement {
		panic(fmt.Sprintf("sqleng: limit on %s statement", st.kind))
	}
	if n == sql.NoLimit {
		st.sel = st.sel.RemoveLimit()
	} else {
		st.sel = st.sel.Limit(uint64(n))
	}
	return st
}

// Values attaches column assignments. On an insert the first call fixes the
// column set, in table column order; later rows must assign the same columns.
// On an update the assignments are merged into the SET clause.
func (st *Stmt) Values(vals ...sql.Values) sql.Statement {
	switch st.kind {
	case sql.InsertStatement:
		for _, v := range vals {
			if st.insertCols == nil {
				for _, column := range st.tt.ColumnNames() {
					if _, ok := v[column]; ok {
						st.insertCols = append(st.insertCols, column)
					}
				}
				st.ins = st.ins.Columns(st.insertCols...)
			}
			args := make([]interface{}, 0, len(st.insertCols))
			for _, column := range st.insertCols {
				args = append(args, v[column])
			}
			st.ins = st.ins.Values(args...)
		}
	case sql.UpdateStatement:
		for _, v := range vals {
			st.upd = st.upd.SetMap(v)
		}
	default:
		panic(fmt.Sprintf("sqleng: values on %s statement", st.kind))
	}
	return st
}

func (st *Stmt) Returning(columns ...string) sql.Statement {
	if len(columns) == 0 {
		return st
	}

	suffix := "RETURNING " + strings.Join(columns, ", ")
	switch st.kind {
	case sql.InsertStatement:
		st.ins = st.ins.Suffix(suffix)
	case sql.UpdateStatement:
		st.upd = st.upd.Suffix(suffix)
	case sql.DeleteStatement:
		st.del = st.del.Suffix(suffix)
	default:
		panic(fmt.Sprintf("sqleng: returning on %s statement", st.kind))
	}
	st.returning = true
	return st
}

// SQL renders the statement to SQL text and its arguments.
func (st *Stmt) SQL() (string, []interface{}, error) {
	switch st.kind {
	case sql.SelectStatement, sql.CountStatement:
		return st.sel.ToSql()
	case sql.InsertStatement:
		return st.ins.ToSql()
	case sql.UpdateStatement:
		return st.upd.ToSql()
	case sql.DeleteStatement:
		return st.del.ToSql()
	}
	return "", nil, fmt.Errorf("sqleng: unexpected statement kind %s", st.kind)
}

// queries reports whether executing the statement returns rows.
func (st *Stmt) queries() bool {
	return st.kind == sql.SelectStatement || st.kind == sql.CountStatement || st.returning
}

func (st *Stmt) String() string {
	qs, args, err := st.SQL()
	if err != nil {
		return err.Error()
	}
	if len(args) == 0 {
		return qs
	}
	return fmt.Sprintf("%s %v", qs, args)
}

// Engine is a sql.Engine over a sqlx database handle.
type Engine struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// New wraps an open database handle. Postgres drivers get dollar
// placeholders; everything else keeps question marks.
func New(db *sqlx.DB) *Engine {
	sb := sq.StatementBuilder
	switch db.DriverName() {
	case "postgres", "pgx":
		sb = sb.PlaceholderFormat(sq.Dollar)
	}
	return &Engine{db: db, sb: sb}
}

// Open opens a database by driver name and data source and wraps it.
func Open(driver, dsn string) (*Engine, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqleng: open %s: %w", driver, err)
	}
	return New(db), nil
}

// Close closes the underlying database handle.
func (eng *Engine) Close() error {
	return eng.db.Close()
}

// DB returns the underlying database handle, for schema setup and the like.
func (eng *Engine) DB() *sqlx.DB {
	return eng.db
}

func (eng *Engine) Select(tt *sql.TableType) sql.Statement {
	return &Stmt{
		kind: sql.SelectStatement,
		tt:   tt,
		sel:  eng.sb.Select(tt.ColumnNames()...).From(tt.Name()),
	}
}

func (eng *Engine) Insert(tt *sql.TableType) sql.Statement {
	return &Stmt{
		kind: sql.InsertStatement,
		tt:   tt,
		ins:  eng.sb.Insert(tt.Name()),
	}
}

func (eng *Engine) Update(tt *sql.TableType) sql.Statement {
	return &Stmt{
		kind: sql.UpdateStatement,
		tt:   tt,
		upd:  eng.sb.Update(tt.Name()),
	}
}

func (eng *Engine) Delete(tt *sql.TableType) sql.Statement {
	return &Stmt{
		kind: sql.DeleteStatement,
		tt:   tt,
		del:  eng.sb.Delete(tt.Name()),
	}
}

func (eng *Engine) Count(tt *sql.TableType) sql.Statement {
	return &Stmt{
		kind: sql.CountStatement,
		tt:   tt,
		sel:  eng.sb.Select("count(*)").From(tt.Name()),
	}
}

func (eng *Engine) Acquire(ctx context.Context) (sql.Conn, error) {
	c, err := eng.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqleng: acquire connection: %w", err)
	}
	return &conn{conn: c}, nil
}

type conn struct {
	conn *sqlx.Conn
	tx   *sqlx.Tx
}

func (c *conn) Execute(ctx context.Context, stmt sql.Statement) (sql.Result, error) {
	st, ok := stmt.(*Stmt)
	if !ok {
		panic(fmt.Sprintf("sqleng: execute of a foreign statement: %T", stmt))
	}

	qs, args, err := st.SQL()
	if err != nil {
		return nil, err
	}

	if st.queries() {
		var rows *sqlx.Rows
		if c.tx != nil {
			rows, err = c.tx.QueryxContext(ctx, qs, args...)
		} else {
			rows, err = c.conn.QueryxContext(ctx, qs, args...)
		}
		if err != nil {
			return nil, err
		}
		return drain(rows)
	}

	var res gosql.Result
	if c.tx != nil {
		res, err = c.tx.ExecContext(ctx, qs, args...)
	} else {
		res, err = c.conn.ExecContext(ctx, qs, args...)
	}
	if err != nil {
		return nil, err
	}
	return &execResult{res: res}, nil
}

func (c *conn) Begin(ctx context.Context) (sql.Transaction, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("sqleng: transaction already in progress")
	}

	tx, err := c.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqleng: begin transaction: %w", err)
	}
	c.tx = tx
	return &transaction{c: c}, nil
}

func (c *conn) Release() error {
	return c.conn.Close()
}

type transaction struct {
	c *conn
}

func (tx *transaction) Commit(ctx context.Context) error {
	t := tx.c.tx
	tx.c.tx = nil
	return t.Commit()
}

func (tx *transaction) Rollback() error {
	t := tx.c.tx
	tx.c.tx = nil
	return t.Rollback()
}

func drain(rows *sqlx.Rows) (sql.Result, error) {
	defer rows.Close()

	var all []sql.Values
	for rows.Next() {
		row := sql.Values{}
		err := rows.MapScan(row)
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}
	err := rows.Err()
	if err != nil {
		return nil, err
	}
	return &rowsResult{rows: all}, nil
}

// rowsResult holds fully drained rows.
type rowsResult struct {
	rows []sql.Values
}

func (rr *rowsResult) FetchAll(ctx context.Context) ([]sql.Values, error) {
	return rr.rows, nil
}

func (rr *rowsResult) FetchOne(ctx context.Context) (sql.Values, error) {
	if len(rr.rows) == 0 {
		return nil, nil
	}
	return rr.rows[0], nil
}

// Scalar reports the single value of the first row; the row must have exactly
// one column, such as a count or a returned key.
func (rr *rowsResult) Scalar(ctx context.Context) (sql.Value, error) {
	if len(rr.rows) == 0 {
		return nil, nil
	}
	row := rr.rows[0]
	if len(row) != 1 {
		return nil, fmt.Errorf("sqleng: scalar of a %d column row", len(row))
	}
	for _, val := range row {
		return val, nil
	}
	return nil, nil
}

// execResult wraps the result of a statement that returns no rows.
type execResult struct {
	res gosql.Result
}

func (er *execResult) RowCount() (int64, error) {
	return er.res.RowsAffected()
}

// Scalar reports the generated key of an insert, on databases that report
// one.
func (er *execResult) Scalar(ctx context.Context) (sql.Value, error) {
	return er.res.LastInsertId()
}
