package orm

import (
	"context"
	"fmt"

	"github.com/leftmike/miniorm/sql"
)

// GetItem selects the first row matching preds as raw values; absence is
// (nil, nil), not an error.
func (m *Manager) GetItem(ctx context.Context, preds []sql.Predicate) (sql.Values, error) {
	m.Select().Where(preds...)
	return m.FetchOne(ctx, nil)
}

// GetInstance selects the first row matching preds wrapped as a record;
// absence is (nil, nil) and the row constructor is never invoked.
func (m *Manager) GetInstance(ctx context.Context, preds []sql.Predicate) (Record, error) {
	row, err := m.GetItem(ctx, preds)
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(row)
}

// GetItems selects all rows matching preds as raw values, ordered and
// paginated. A non-nil base statement is refined instead of a fresh select.
// Use sql.NoLimit for an unbounded fetch.
func (m *Manager) GetItems(ctx context.Context, base sql.Statement, preds []sql.Predicate,
	order []sql.OrderBy, offset, limit int64) ([]sql.Values, error) {

	if base == nil {
		base = m.eng.Select(m.tt)
	}
	m.SetStatement(base).Where(preds...).OrderBy(order...).Offset(offset).Limit(limit)
	return m.FetchAll(ctx, nil)
}

// GetInstances selects all rows matching preds wrapped as records; an empty
// result is an empty slice, never an error.
func (m *Manager) GetInstances(ctx context.Context, preds []sql.Predicate, order []sql.OrderBy,
	offset, limit int64) ([]Record, error) {

	rows, err := m.GetItems(ctx, nil, preds, order, offset, limit)
	if err != nil {
		return nil, err
	}
	return m.materializeAll(rows)
}

// InsertValues inserts one row and fetches it back, with server assigned
// columns filled in.
func (m *Manager) InsertValues(ctx context.Context, vals sql.Values) (Record, error) {
	m.Insert().Values(vals).Returning(m.tt.ColumnNames()...)
	row, err := m.FetchOne(ctx, nil)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("orm: %s: insert returned no row", m.tt)
	}
	return m.materialize(row)
}

// InsertKey inserts one row without fetching it back and returns the
// engine's scalar result, typically the generated key.
func (m *Manager) InsertKey(ctx context.Context, vals sql.Values) (sql.Value, error) {
	m.Insert().Values(vals)
	return m.Scalar(ctx, nil)
}

// BulkInsert inserts multiple rows and fetches them back as records.
func (m *Manager) BulkInsert(ctx context.Context, vals []sql.Values) ([]Record, error) {
	m.Insert().Values(vals...).Returning(m.tt.ColumnNames()...)
	rows, err := m.FetchAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return m.materializeAll(rows)
}

// BulkInsertCount inserts multiple rows without fetching them back and
// returns the affected row count.
func (m *Manager) BulkInsertCount(ctx context.Context, vals []sql.Values) (int64, error) {
	m.Insert().Values(vals...)
	return m.RowCount(ctx, nil)
}

// UpdateWhere updates rows matching preds and returns the affected row
// count.
func (m *Manager) UpdateWhere(ctx context.Context, preds []sql.Predicate,
	vals sql.Values) (int64, error) {

	m.Update().Where(preds...).Values(vals)
	return m.RowCount(ctx, nil)
}

// UpdateReturning updates rows matching preds and fetches the updated rows
// back as records; no matching rows is an empty slice.
func (m *Manager) UpdateReturning(ctx context.Context, preds []sql.Predicate,
	vals sql.Values) ([]Record, error) {

	m.Update().Where(preds...).Values(vals).Returning(m.tt.ColumnNames()...)
	rows, err := m.FetchAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return m.materializeAll(rows)
}

// DeleteWhere deletes rows matching preds and returns the affected row
// count.
func (m *Manager) DeleteWhere(ctx context.Context, preds []sql.Predicate) (int64, error) {
	m.Delete().Where(preds...)
	return m.RowCount(ctx, nil)
}

// CountWhere counts rows matching preds. A non-nil base statement is used
// verbatim instead of a fresh count, with preds still applied.
func (m *Manager) CountWhere(ctx context.Context, base sql.Statement,
	preds []sql.Predicate) (int64, error) {

	if base == nil {
		base = m.eng.Count(m.tt)
	}
	m.SetStatement(base).Where(preds...)
	val, err := m.Scalar(ctx, nil)
	if err != nil {
		return 0, err
	}
	switch n := val.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case nil:
		return 0, fmt.Errorf("orm: %s: count returned no value", m.tt)
	default:
		return 0, fmt.Errorf("orm: %s: count returned %v: %T", m.tt, val, val)
	}
}
