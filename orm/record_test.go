package orm_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/leftmike/miniorm/engine/test"
	"github.com/leftmike/miniorm/orm"
	"github.com/leftmike/miniorm/sql"
)

type item struct {
	orm.Model
	ID   int64  `db:"id,pk,auto"`
	Name string `db:"name"`
}

func makeItemManager(t *testing.T) (*test.Engine, *orm.Manager) {
	t.Helper()

	tt, err := orm.TableTypeOf("items", &item{})
	if err != nil {
		t.Fatalf("TableTypeOf(items) failed with %s", err)
	}
	te := &test.Engine{}
	m, err := orm.NewManager(te, tt, &item{})
	if err != nil {
		t.Fatalf("NewManager(items) failed with %s", err)
	}
	return te, m
}

func TestInsertRow(t *testing.T) {
	ctx := context.Background()
	te, m := makeItemManager(t)

	te.Script(&test.RowsResult{Rows: []sql.Values{{"id": int64(7), "name": "a"}}})

	it := &item{Name: "a"}
	err := m.InsertRow(ctx, it)
	if err != nil {
		t.Fatalf("InsertRow() failed with %s", err)
	}

	// Only the non auto columns were submitted; the generated key was
	// reconciled back into the record.
	stmt := te.LastStmt()
	want := []sql.Values{{"name": "a"}}
	if !reflect.DeepEqual(stmt.Vals, want) {
		t.Errorf("InsertRow() submitted %v want %v", stmt.Vals, want)
	}
	if it.ID != 7 {
		t.Errorf("InsertRow() got id %d want 7", it.ID)
	}
	if it.Deleted() {
		t.Errorf("InsertRow() marked the record deleted")
	}
}

func TestInsertRowNullable(t *testing.T) {
	ctx := context.Background()
	te, m := makeManager(t)

	te.Script(&test.RowsResult{Rows: []sql.Values{
		{"id": int64(3), "name": "a", "amount": int64(0), "note": nil},
	}})

	acct := &account{Name: "a"}
	err := m.InsertRow(ctx, acct)
	if err != nil {
		t.Fatalf("InsertRow() failed with %s", err)
	}

	// The nil note was not submitted; the zero amount was.
	want := []sql.Values{{"name": "a", "amount": int64(0)}}
	if !reflect.DeepEqual(te.LastStmt().Vals, want) {
		t.Errorf("InsertRow() submitted %v want %v", te.LastStmt().Vals, want)
	}
	if acct.ID != 3 {
		t.Errorf("InsertRow() got id %d want 3", acct.ID)
	}
}

func TestUpdateRow(t *testing.T) {
	ctx := context.Background()
	te, m := makeItemManager(t)

	it := &item{ID: 7, Name: "a"}

	// No rows affected: the in memory value must not change.
	te.Script(&test.CountResult{Count: 0})
	err := m.UpdateRow(ctx, it, sql.Values{"name": "b"})
	if err != nil {
		t.Fatalf("UpdateRow() failed with %s", err)
	}
	if it.Name != "a" {
		t.Errorf("UpdateRow() with no affected rows changed name to %q", it.Name)
	}

	stmt := te.LastStmt()
	wantPreds := []sql.Predicate{sql.Eq("id", int64(7))}
	if !reflect.DeepEqual(stmt.Preds, wantPreds) {
		t.Errorf("UpdateRow() filtered by %v want %v", stmt.Preds, wantPreds)
	}
	if len(stmt.Ret) != 0 {
		t.Errorf("UpdateRow() requested returning %v; want none", stmt.Ret)
	}

	// One row affected: the change is applied in memory.
	te.Script(&test.CountResult{Count: 1})
	err = m.UpdateRow(ctx, it, sql.Values{"name": "b"})
	if err != nil {
		t.Fatalf("UpdateRow() failed with %s", err)
	}
	if it.Name != "b" {
		t.Errorf("UpdateRow() got name %q want b", it.Name)
	}
}

func TestDeleteRow(t *testing.T) {
	ctx := context.Background()
	te, m := makeItemManager(t)

	// The record is marked deleted even when no rows were affected.
	te.Script(&test.CountResult{Count: 0})
	it := &item{ID: 7, Name: "a"}
	cnt, err := m.DeleteRow(ctx, it)
	if err != nil {
		t.Fatalf("DeleteRow() failed with %s", err)
	}
	if cnt != 0 {
		t.Errorf("DeleteRow() got %d want 0", cnt)
	}
	if !it.Deleted() {
		t.Errorf("DeleteRow() did not mark the record deleted")
	}

	expectContract(t, "DeleteRow() on a deleted record",
		func() {
			m.DeleteRow(ctx, it)
		})
	expectContract(t, "UpdateRow() on a deleted record",
		func() {
			m.UpdateRow(ctx, it, sql.Values{"name": "b"})
		})
	expectContract(t, "InsertRow() on a deleted record",
		func() {
			m.InsertRow(ctx, it)
		})
}

func TestRowTypeMismatch(t *testing.T) {
	ctx := context.Background()
	_, m := makeItemManager(t)

	expectContract(t, "InsertRow() with the wrong row type",
		func() {
			m.InsertRow(ctx, &account{Name: "a"})
		})
}

func TestFieldsAndString(t *testing.T) {
	ctx := context.Background()
	te, m := makeItemManager(t)

	te.Script(&test.RowsResult{Rows: []sql.Values{{"id": int64(7), "name": "a"}}})
	rec, err := m.GetInstance(ctx, []sql.Predicate{sql.Eq("id", 7)})
	if err != nil {
		t.Fatalf("GetInstance() failed with %s", err)
	}

	fields := orm.Fields(rec)
	want := []orm.Field{{Column: "id", Value: int64(7)}, {Column: "name", Value: "a"}}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("Fields() got %v want %v", fields, want)
	}

	it := rec.(*item)
	if s := it.String(); s != "item{id: 7}" {
		t.Errorf("String() got %q want item{id: 7}", s)
	}
}
