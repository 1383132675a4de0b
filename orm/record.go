package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/leftmike/miniorm/sql"
)

// adopt checks that rec is of the manager's row type, binds it, and checks
// the deleted contract.
func (m *Manager) adopt(op string, rec Record) *Model {
	typ := reflect.TypeOf(rec)
	if typ.Kind() != reflect.Ptr || typ.Elem() != m.info.typ {
		contractPanic("orm: %s: %s: record is %T; manager is for %s", m.tt, op, rec,
			m.info.typ.Name())
	}

	mdl := rec.model()
	mdl.bind(m.info, rec)
	if mdl.deleted {
		contractPanic("orm: %s: %s: record %s has been deleted", m.tt, op, mdl)
	}
	return mdl
}

func (m *Manager) pkPredicate(rec Record) sql.Predicate {
	return sql.Eq(m.info.fields[m.info.pkField].column, m.info.value(rec, m.info.pkField))
}

// insertValues gathers the record's column values to submit on insert: every
// mapped column except the auto increment column and NULL valued fields.
func (m *Manager) insertValues(rec Record) sql.Values {
	vals := sql.Values{}
	for fdx, fi := range m.info.fields {
		if fi.auto {
			continue
		}
		val := m.info.value(rec, fdx)
		if val == nil {
			continue
		}
		vals[fi.column] = val
	}
	return vals
}

// applyReturned folds values reported back by the engine into the record,
// touching only fields whose value actually changed.
func (m *Manager) applyReturned(rec Record, vals sql.Values) error {
	for fdx, fi := range m.info.fields {
		val, ok := vals[fi.column]
		if !ok {
			continue
		}
		_, err := m.info.setChanged(rec, fdx, val)
		if err != nil {
			return err
		}
	}
	return nil
}

// materialize wraps one fetched row as a record; the record is fresh and
// bound to this manager's row type.
func (m *Manager) materialize(row sql.Values) (Record, error) {
	rec := m.info.newRecord()
	for fdx, fi := range m.info.fields {
		val, ok := row[fi.column]
		if !ok {
			continue
		}
		err := m.info.setValue(rec, fdx, val)
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (m *Manager) materializeAll(rows []sql.Values) ([]Record, error) {
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := m.materialize(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// InsertRow inserts the record, requesting all columns back, and reconciles
// server assigned values, such as the generated key, into the record.
func (m *Manager) InsertRow(ctx context.Context, rec Record) error {
	m.adopt("insert", rec)

	m.Insert().Values(m.insertValues(rec)).Returning(m.tt.ColumnNames()...)
	row, err := m.FetchOne(ctx, nil)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("orm: %s: insert returned no row", m.tt)
	}
	return m.applyReturned(rec, row)
}

// UpdateRow updates the row identified by the record's primary key with
// changes. The changes are applied to the record in memory only if at least
// one row was affected.
func (m *Manager) UpdateRow(ctx context.Context, rec Record, changes sql.Values) error {
	m.adopt("update", rec)

	cnt, err := m.UpdateWhere(ctx, []sql.Predicate{m.pkPredicate(rec)}, changes)
	if err != nil {
		return err
	}
	if cnt > 0 {
		return m.applyReturned(rec, changes)
	}
	return nil
}

// DeleteRow deletes the row identified by the record's primary key and marks
// the record deleted, whether or not any row was actually affected. It
// returns the affected row count.
func (m *Manager) DeleteRow(ctx context.Context, rec Record) (int64, error) {
	mdl := m.adopt("delete", rec)

	cnt, err := m.DeleteWhere(ctx, []sql.Predicate{m.pkPredicate(rec)})
	if err != nil {
		return 0, err
	}
	mdl.deleted = true
	return cnt, nil
}

// Insert inserts rec through its row type's registered manager.
func Insert(ctx context.Context, rec Record) error {
	return managerFor(rec).InsertRow(ctx, rec)
}

// Update updates the row identified by rec's primary key through its row
// type's registered manager.
func Update(ctx context.Context, rec Record, changes sql.Values) error {
	return managerFor(rec).UpdateRow(ctx, rec, changes)
}

// Delete deletes the row identified by rec's primary key through its row
// type's registered manager.
func Delete(ctx context.Context, rec Record) (int64, error) {
	return managerFor(rec).DeleteRow(ctx, rec)
}

// Field is one (column, value) pair of a record.
type Field struct {
	Column string
	Value  sql.Value
}

// Fields returns the record's (column, value) pairs in table column order.
func Fields(rec Record) []Field {
	mdl := rec.model()
	if mdl.info == nil {
		mdl.bind(managerFor(rec).info, rec)
	}

	fields := make([]Field, 0, len(mdl.info.fields))
	for fdx, fi := range mdl.info.fields {
		fields = append(fields, Field{Column: fi.column, Value: mdl.info.value(rec, fdx)})
	}
	return fields
}
