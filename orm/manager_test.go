package orm_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/leftmike/miniorm/engine/test"
	"github.com/leftmike/miniorm/orm"
	"github.com/leftmike/miniorm/sql"
)

type account struct {
	orm.Model
	ID     int64   `db:"id,pk,auto"`
	Name   string  `db:"name"`
	Amount int64   `db:"amount"`
	Note   *string `db:"note"`
}

func makeManager(t *testing.T) (*test.Engine, *orm.Manager) {
	t.Helper()

	tt, err := orm.TableTypeOf("accounts", &account{})
	if err != nil {
		t.Fatalf("TableTypeOf(accounts) failed with %s", err)
	}
	te := &test.Engine{}
	m, err := orm.NewManager(te, tt, &account{})
	if err != nil {
		t.Fatalf("NewManager(accounts) failed with %s", err)
	}
	return te, m
}

func expectContract(t *testing.T, what string, fn func()) {
	t.Helper()

	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("%s did not panic", what)
			return
		}
		if _, ok := r.(*orm.ContractError); !ok {
			t.Errorf("%s panicked with %v; want a contract error", what, r)
		}
	}()
	fn()
}

func TestWhereConjunction(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	p1 := sql.Eq("id", 12)
	p2 := sql.Gt("amount", 100)
	p3 := sql.Like("name", "ab%")

	_, err := m.Select().Where(p1, p2).Where(p3).FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}

	stmt := te.LastStmt()
	want := []sql.Predicate{p1, p2, p3}
	if !reflect.DeepEqual(stmt.Preds, want) {
		t.Errorf("Where() applied %v want %v", stmt.Preds, want)
	}

	// An empty where is a no-op and must not require a pending statement.
	m.Where()
}

func TestOrderBy(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	_, err := m.Select().
		OrderBy(sql.OrderBy{Field: "name", Order: sql.Asc},
			sql.OrderBy{Field: "amount", Order: sql.Desc}).
		FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}

	stmt := te.LastStmt()
	want := []test.OrderKey{{Column: "name"}, {Column: "amount", Desc: true}}
	if !reflect.DeepEqual(stmt.Order, want) {
		t.Errorf("OrderBy() applied %v want %v", stmt.Order, want)
	}
}

func TestOrderByContract(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	expectContract(t, "OrderBy(bogus order)",
		func() {
			m.Select().OrderBy(sql.OrderBy{Field: "name", Order: "sideways"})
		})

	// A bad second key must fail before the valid first key is applied.
	m.SetStatement(nil).Select()
	expectContract(t, "OrderBy(bad second key)",
		func() {
			m.OrderBy(sql.OrderBy{Field: "name", Order: sql.Asc},
				sql.OrderBy{Field: "name", Order: "sideways"})
		})
	_, err := m.FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	if len(te.LastStmt().Order) != 0 {
		t.Errorf("OrderBy(bad second key) applied %v want none", te.LastStmt().Order)
	}

	m.Select()
	expectContract(t, "OrderBy(unknown column)",
		func() {
			m.OrderBy(sql.OrderBy{Field: "bogus", Order: sql.Asc})
		})

	m.SetStatement(nil)
	expectContract(t, "OrderBy() with no statement",
		func() {
			m.OrderBy(sql.OrderBy{Field: "name", Order: sql.Asc})
		})
}

func TestOffsetLimit(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	// Offset of zero must leave the statement untouched; limit must always
	// apply, including the no limit sentinel.
	_, err := m.Select().Offset(0).Limit(sql.NoLimit).FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	stmt := te.LastStmt()
	if stmt.OffsetN != 0 {
		t.Errorf("Offset(0) applied %d want no offset", stmt.OffsetN)
	}
	if !stmt.Limited || stmt.LimitN != sql.NoLimit {
		t.Errorf("Limit(NoLimit) got limited %v limit %d; want the sentinel applied",
			stmt.Limited, stmt.LimitN)
	}

	_, err = m.Select().Offset(10).Limit(5).FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	stmt = te.LastStmt()
	if stmt.OffsetN != 10 {
		t.Errorf("Offset(10) applied %d want 10", stmt.OffsetN)
	}
	if !stmt.Limited || stmt.LimitN != 5 {
		t.Errorf("Limit(5) got limited %v limit %d", stmt.Limited, stmt.LimitN)
	}

	// Offset of zero must not require a pending statement; limit must.
	m.Offset(0)
	expectContract(t, "Limit() with no statement",
		func() {
			m.Limit(5)
		})
	expectContract(t, "Offset(1) with no statement",
		func() {
			m.Offset(1)
		})
}

func TestPendingCleared(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	_, err := m.Select().FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}

	// The pending statement was cleared by the verb; refining now is a
	// contract violation.
	expectContract(t, "Where() after execution",
		func() {
			m.Where(sql.Eq("id", 1))
		})
	expectContract(t, "FetchAll() after execution",
		func() {
			m.FetchAll(ctx, nil)
		})

	// The pending statement is cleared even when extraction fails.
	te.Script(&test.BareResult{})
	m.Select()
	_, err = m.RowCount(ctx, nil)
	if err == nil {
		t.Fatalf("RowCount() did not fail")
	}
	expectContract(t, "Where() after failed extraction",
		func() {
			m.Where(sql.Eq("id", 1))
		})
}

func TestStatementOverride(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	m.Select().Where(sql.Eq("id", 1))

	over := &test.Stmt{Op: sql.SelectStatement, Table: "accounts"}
	_, err := m.FetchAll(ctx, over)
	if err != nil {
		t.Fatalf("FetchAll(override) failed with %s", err)
	}
	if te.LastStmt() != over {
		t.Errorf("FetchAll(override) executed %v want the override", te.LastStmt())
	}

	// The override must not have touched the pending statement.
	_, err = m.FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	stmt := te.LastStmt()
	if len(stmt.Preds) != 1 {
		t.Errorf("pending statement got %v; want the original predicate", stmt.Preds)
	}
}

func TestExecutionFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("broken wire")
	te.ExecuteErr = want

	_, err := m.Select().FetchAll(ctx, nil)
	if err == nil {
		t.Fatalf("FetchAll() did not fail")
	}
	var ee *orm.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("FetchAll() failed with %T; want an execution error", err)
	}
	if !errors.Is(err, want) {
		t.Errorf("FetchAll() masked the underlying error: %s", err)
	}
	if te.Acquired != 1 || te.Released != 1 {
		t.Errorf("connection acquired %d released %d; want 1 and 1", te.Acquired, te.Released)
	}
}

func TestUnsupportedExtraction(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	cases := []func() error{
		func() error {
			_, err := m.Select().FetchAll(ctx, nil)
			return err
		},
		func() error {
			_, err := m.Select().FetchOne(ctx, nil)
			return err
		},
		func() error {
			_, err := m.Select().Scalar(ctx, nil)
			return err
		},
		func() error {
			_, err := m.Select().RowCount(ctx, nil)
			return err
		},
	}

	for cdx, c := range cases {
		te.Script(&test.BareResult{})
		err := c()
		if err == nil {
			t.Errorf("case %d: verb did not fail on an unsupported result", cdx)
			continue
		}
		var ee *orm.ExecutionError
		if !errors.As(err, &ee) {
			t.Errorf("case %d: verb failed with %T; want an execution error", cdx, err)
		}
	}
}

func TestConnectionPerCall(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	for n := 1; n <= 3; n += 1 {
		_, err := m.Select().FetchAll(ctx, nil)
		if err != nil {
			t.Fatalf("FetchAll() failed with %s", err)
		}
		if te.Acquired != n || te.Released != n {
			t.Errorf("after %d verbs: acquired %d released %d", n, te.Acquired, te.Released)
		}
	}
}

func TestAcquireFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("pool exhausted")
	te.AcquireErr = want

	_, err := m.Select().FetchAll(ctx, nil)
	if !errors.Is(err, want) {
		t.Errorf("FetchAll() failed with %v; want the acquire error", err)
	}
}

func TestNewInstance(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	m.Select().Where(sql.Eq("id", 1))

	m2 := m.NewInstance()
	expectContract(t, "Where() on a fresh instance",
		func() {
			m2.Where(sql.Eq("id", 2))
		})

	// The original manager's pending statement is untouched.
	_, err := m.FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	if len(te.LastStmt().Preds) != 1 {
		t.Errorf("pending statement got %v; want one predicate", te.LastStmt().Preds)
	}
}
