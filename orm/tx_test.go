package orm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leftmike/miniorm/engine/test"
	"github.com/leftmike/miniorm/orm"
	"github.com/leftmike/miniorm/sql"
)

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)
	te.Script(&test.RowsResult{}, &test.CountResult{Count: 4})

	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			_, err := tm.Select().Where(sql.Eq("id", 1)).FetchAll(ctx, nil)
			if err != nil {
				return err
			}
			_, err = tm.Count().RowCount(ctx, nil)
			return err
		})
	if err != nil {
		t.Fatalf("Transaction() failed with %s", err)
	}

	// Both verbs ran on the one borrowed connection.
	if te.Acquired != 1 || te.Released != 1 {
		t.Errorf("transaction acquired %d released %d; want 1 and 1", te.Acquired, te.Released)
	}
	if te.Begun != 1 || te.Committed != 1 || te.RolledBack != 0 {
		t.Errorf("transaction begun %d committed %d rolled back %d; want 1, 1, 0",
			te.Begun, te.Committed, te.RolledBack)
	}
	if len(te.Stmts) != 2 {
		t.Errorf("transaction executed %d statements; want 2", len(te.Stmts))
	}
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("not enough funds")
	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			return want
		})
	if !errors.Is(err, want) {
		t.Errorf("Transaction() failed with %v; want the returned error", err)
	}

	if te.Acquired != 1 || te.Released != 1 {
		t.Errorf("transaction acquired %d released %d; want 1 and 1", te.Acquired, te.Released)
	}
	if te.Committed != 0 || te.RolledBack != 1 {
		t.Errorf("transaction committed %d rolled back %d; want 0 and 1",
			te.Committed, te.RolledBack)
	}
}

func TestTransactionPanic(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Transaction() swallowed the panic")
			}
		}()

		m.Transaction(ctx,
			func(ctx context.Context, tm *orm.Manager) error {
				panic("boom")
			})
	}()

	// The panic must still roll back and release the connection.
	if te.Released != 1 {
		t.Errorf("transaction released %d connections; want 1", te.Released)
	}
	if te.Committed != 0 || te.RolledBack != 1 {
		t.Errorf("transaction committed %d rolled back %d; want 0 and 1",
			te.Committed, te.RolledBack)
	}
}

func TestTransactionBeginFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("too many transactions")
	te.BeginErr = want

	called := false
	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			called = true
			return nil
		})
	if !errors.Is(err, want) {
		t.Errorf("Transaction() failed with %v; want the begin error", err)
	}
	if called {
		t.Errorf("Transaction() ran fn without a transaction")
	}
	if te.Released != 1 {
		t.Errorf("transaction released %d connections; want 1", te.Released)
	}
}

func TestTransactionAcquireFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("pool exhausted")
	te.AcquireErr = want

	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			t.Errorf("Transaction() ran fn without a connection")
			return nil
		})
	if !errors.Is(err, want) {
		t.Errorf("Transaction() failed with %v; want the acquire error", err)
	}
}

func TestTransactionCommitFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("serialization conflict")
	te.CommitErr = want

	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			return nil
		})
	if !errors.Is(err, want) {
		t.Errorf("Transaction() failed with %v; want the commit error", err)
	}
	if te.Released != 1 {
		t.Errorf("transaction released %d connections; want 1", te.Released)
	}
}

func TestTransactionRollbackFailure(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	want := errors.New("not enough funds")
	te.RollbackErr = errors.New("connection lost")

	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			return want
		})
	if !errors.Is(err, want) {
		t.Errorf("Transaction() failed with %v; want the fn error", err)
	}
	if te.Released != 1 {
		t.Errorf("transaction released %d connections; want 1", te.Released)
	}
}

func TestTransactionSharedManager(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	err := m.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			if tm == m {
				t.Errorf("Transaction() reused the shared manager")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Transaction() failed with %s", err)
	}

	// The shared manager acquires its own connection afterwards.
	_, err = m.Select().FetchAll(ctx, nil)
	if err != nil {
		t.Fatalf("FetchAll() failed with %s", err)
	}
	if te.Acquired != 2 || te.Released != 2 {
		t.Errorf("acquired %d released %d; want 2 and 2", te.Acquired, te.Released)
	}
}
