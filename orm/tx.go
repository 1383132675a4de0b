package orm

import (
	"context"
	"fmt"
)

// Transaction runs fn inside one unit of work: a dedicated manager instance
// bound to one borrowed connection with one active transaction. The
// transaction is committed if fn returns nil and rolled back otherwise --
// including when fn panics -- and the connection is released on every exit
// path. Transactions are not nestable and the scoped manager must not
// outlive fn.
//
//	err := accounts.Transaction(ctx, func(ctx context.Context, tm *orm.Manager) error {
//	    ...
//	    return nil
//	})
func (m *Manager) Transaction(ctx context.Context,
	fn func(ctx context.Context, tm *Manager) error) error {

	conn, err := m.eng.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("orm: %s: acquire connection: %w", m.tt, err)
	}

	tm := m.NewInstance()
	tm.conn = conn
	defer func() {
		tm.conn = nil
		conn.Release()
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("orm: %s: begin transaction: %w", m.tt, err)
	}

	done := false
	defer func() {
		if !done {
			tx.Rollback()
		}
	}()

	err = fn(ctx, tm)
	if err != nil {
		done = true
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("orm: %s: rollback: %s: %w", m.tt, rerr, err)
		}
		return err
	}

	done = true
	return tx.Commit(ctx)
}
