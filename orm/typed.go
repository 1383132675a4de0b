package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/leftmike/miniorm/sql"
)

// Fetch is GetInstance with static typing: it selects the first row matching
// preds as a *T, or nil if there is none. T must be the manager's row type.
func Fetch[T any](ctx context.Context, m *Manager, preds ...sql.Predicate) (*T, error) {
	if err := checkRowType[T](m); err != nil {
		return nil, err
	}

	rec, err := m.GetInstance(ctx, preds)
	if err != nil || rec == nil {
		return nil, err
	}
	return any(rec).(*T), nil
}

// FetchAll is GetInstances with static typing: it selects all rows matching
// preds as a slice of *T, ordered and paginated. Use sql.NoLimit for an
// unbounded fetch.
func FetchAll[T any](ctx context.Context, m *Manager, preds []sql.Predicate,
	order []sql.OrderBy, offset, limit int64) ([]*T, error) {

	if err := checkRowType[T](m); err != nil {
		return nil, err
	}

	recs, err := m.GetInstances(ctx, preds, order, offset, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]*T, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, any(rec).(*T))
	}
	return rows, nil
}

func checkRowType[T any](m *Manager) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ != m.info.typ {
		return fmt.Errorf("orm: %s: manager is for %s; not %s", m.tt, m.info.typ.Name(),
			typ.Name())
	}
	return nil
}
