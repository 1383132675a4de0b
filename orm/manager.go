// Package orm is a minimal active record layer over an external database
// engine. A Manager is a chainable statement builder bound to one table and
// one row type; it owns at most one pending statement at a time and executes
// it with FetchAll, FetchOne, Scalar, or RowCount, or through the derived
// helpers in crud.go. Row structs embed Model and are operated on through
// the package level Insert, Update, and Delete, or through a transaction
// scoped manager; see tx.go.
//
// A Manager must not be shared across concurrent units of work: it owns a
// single pending statement. Transaction scopes hand out a dedicated manager
// instance for exactly that reason.
package orm

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/miniorm/sql"
)

// Manager builds and executes statements for one table and one row type.
type Manager struct {
	tt   *sql.TableType
	eng  sql.Engine
	info *rowInfo

	stmt sql.Statement
	conn sql.Conn // ambient transaction connection; nil outside a scope
}

// NewManager makes a manager for a table and the row type of rec, which must
// be a pointer to a struct embedding Model. Most callers should use Register
// instead; NewManager is for managers that bypass the registry.
func NewManager(eng sql.Engine, tt *sql.TableType, rec Record) (*Manager, error) {
	info, err := makeRowInfo(rec, tt)
	if err != nil {
		return nil, err
	}
	return &Manager{tt: tt, eng: eng, info: info}, nil
}

// TableType returns the table the manager operates on.
func (m *Manager) TableType() *sql.TableType {
	return m.tt
}

// NewInstance returns a fresh manager over the same table and row type, with
// no ambient connection and no pending statement.
func (m *Manager) NewInstance() *Manager {
	return &Manager{tt: m.tt, eng: m.eng, info: m.info}
}

func (m *Manager) pending(op string) sql.Statement {
	if m.stmt == nil {
		contractPanic(
			"orm: %s: %s: no pending statement; call Select, Insert, Update, Delete, or Count first",
			m.tt, op)
	}
	return m.stmt
}

// SetStatement replaces the pending statement; passing nil clears it.
func (m *Manager) SetStatement(stmt sql.Statement) *Manager {
	m.stmt = stmt
	return m
}

// Select starts a fresh select statement.
func (m *Manager) Select() *Manager {
	m.stmt = m.eng.Select(m.tt)
	return m
}

// Insert starts a fresh insert statement.
func (m *Manager) Insert() *Manager {
	m.stmt = m.eng.Insert(m.tt)
	return m
}

// Update starts a fresh update statement.
func (m *Manager) Update() *Manager {
	m.stmt = m.eng.Update(m.tt)
	return m
}

// Delete starts a fresh delete statement.
func (m *Manager) Delete() *Manager {
	m.stmt = m.eng.Delete(m.tt)
	return m
}

// Count starts a fresh count statement.
func (m *Manager) Count() *Manager {
	m.stmt = m.eng.Count(m.tt)
	return m
}

// Where conjoins predicates onto the pending statement, left to right. With
// no predicates it is a no-op and does not require a pending statement.
func (m *Manager) Where(preds ...sql.Predicate) *Manager {
	if len(preds) == 0 {
		return m
	}

	stmt := m.pending("where")
	for _, p := range preds {
		stmt = stmt.Where(p)
	}
	m.stmt = stmt
	return m
}

// OrderBy applies ordering keys in call order: the first key sorts first.
// Every key is validated before any of them is applied.
func (m *Manager) OrderBy(order ...sql.OrderBy) *Manager {
	if len(order) == 0 {
		return m
	}

	stmt := m.pending("order by")
	for _, ob := range order {
		if ob.Order != sql.Asc && ob.Order != sql.Desc {
			contractPanic("orm: %s: order by: unknown sort order %q", m.tt, ob.Order)
		}
		if m.tt.Column(ob.Field) == nil {
			contractPanic("orm: %s: order by: unknown column %q", m.tt, ob.Field)
		}
	}
	for _, ob := range order {
		stmt = stmt.OrderBy(ob.Field, ob.Order == sql.Desc)
	}
	m.stmt = stmt
	return m
}

// Offset applies an offset only when n > 0; zero means no offset and leaves
// the pending statement untouched.
func (m *Manager) Offset(n int64) *Manager {
	if n > 0 {
		m.stmt = m.pending("offset").Offset(n)
	}
	return m
}

// Limit always refines the pending statement, including with sql.NoLimit to
// re-assert unboundedness.
func (m *Manager) Limit(n int64) *Manager {
	m.stmt = m.pending("limit").Limit(n)
	return m
}

// Values attaches column assignments to the pending insert or update.
func (m *Manager) Values(vals ...sql.Values) *Manager {
	m.stmt = m.pending("values").Values(vals...)
	return m
}

// Returning requests columns be reported back by the pending insert or
// update.
func (m *Manager) Returning(columns ...string) *Manager {
	m.stmt = m.pending("returning").Returning(columns...)
	return m
}

// run resolves the statement to execute, clears the pending statement if it
// was used, executes over the ambient connection or a freshly acquired one,
// and hands the result to extract before the connection is released. Any
// execution or extraction error is logged with the statement and returned
// wrapped in an ExecutionError.
func (m *Manager) run(ctx context.Context, stmt sql.Statement,
	extract func(context.Context, sql.Result) error) error {

	if stmt == nil {
		stmt = m.pending("execute")
		m.stmt = nil
	}

	conn := m.conn
	if conn == nil {
		c, err := m.eng.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("orm: %s: acquire connection: %w", m.tt, err)
		}
		defer c.Release()
		conn = c
	}

	res, err := conn.Execute(ctx, stmt)
	if err == nil {
		err = extract(ctx, res)
	}
	if err != nil {
		log.WithFields(log.Fields{"table": m.tt.Name(), "stmt": stmt.String(),
			"error": err}).Error("statement execution failed")
		return &ExecutionError{Stmt: stmt.String(), Err: err}
	}
	return nil
}

// FetchAll executes stmt, or the pending statement if stmt is nil, and
// returns every result row.
func (m *Manager) FetchAll(ctx context.Context, stmt sql.Statement) ([]sql.Values, error) {
	var rows []sql.Values
	err := m.run(ctx, stmt,
		func(ctx context.Context, res sql.Result) error {
			all, ok := res.(sql.AllRows)
			if !ok {
				return fmt.Errorf("result %T does not support fetching all rows", res)
			}
			var err error
			rows, err = all.FetchAll(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchOne executes stmt, or the pending statement if stmt is nil, and
// returns the first result row, or nil if there is none.
func (m *Manager) FetchOne(ctx context.Context, stmt sql.Statement) (sql.Values, error) {
	var row sql.Values
	err := m.run(ctx, stmt,
		func(ctx context.Context, res sql.Result) error {
			one, ok := res.(sql.OneRow)
			if !ok {
				return fmt.Errorf("result %T does not support fetching one row", res)
			}
			var err error
			row, err = one.FetchOne(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Scalar executes stmt, or the pending statement if stmt is nil, and returns
// a single value, such as a count or a generated key.
func (m *Manager) Scalar(ctx context.Context, stmt sql.Statement) (sql.Value, error) {
	var val sql.Value
	err := m.run(ctx, stmt,
		func(ctx context.Context, res sql.Result) error {
			sc, ok := res.(sql.Scalar)
			if !ok {
				return fmt.Errorf("result %T does not support a scalar", res)
			}
			var err error
			val, err = sc.Scalar(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// RowCount executes stmt, or the pending statement if stmt is nil, and
// returns the number of rows affected.
func (m *Manager) RowCount(ctx context.Context, stmt sql.Statement) (int64, error) {
	var cnt int64
	err := m.run(ctx, stmt,
		func(ctx context.Context, res sql.Result) error {
			rc, ok := res.(sql.RowCount)
			if !ok {
				return fmt.Errorf("result %T does not support a row count", res)
			}
			var err error
			cnt, err = rc.RowCount()
			return err
		})
	if err != nil {
		return 0, err
	}
	return cnt, nil
}
