package sql

import (
	"fmt"
)

// Column describes one column of a table: its name, whether it is the
// primary key, and whether its value is generated by the database.
type Column struct {
	Name          string
	PrimaryKey    bool
	AutoIncrement bool
}

// TableType describes the shape of one table: its name and its ordered list
// of columns. It is immutable once made; managers and engines share it.
type TableType struct {
	name    string
	columns []Column
	byName  map[string]int
	primary int
	auto    int
}

// MakeTableType makes a table type from an ordered list of columns. Column
// names must be unique, exactly one column must be the primary key, and at
// most one column may be auto increment.
func MakeTableType(name string, columns []Column) (*TableType, error) {
	if name == "" {
		return nil, fmt.Errorf("sql: table must have a name")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sql: table %s: must have at least one column", name)
	}

	tt := &TableType{
		name:    name,
		columns: columns,
		byName:  map[string]int{},
		primary: -1,
		auto:    -1,
	}
	for cdx, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("sql: table %s: column %d: must have a name", name, cdx)
		}
		if _, ok := tt.byName[col.Name]; ok {
			return nil, fmt.Errorf("sql: table %s: duplicate column %s", name, col.Name)
		}
		tt.byName[col.Name] = cdx

		if col.PrimaryKey {
			if tt.primary >= 0 {
				return nil, fmt.Errorf("sql: table %s: multiple primary key columns: %s and %s",
					name, columns[tt.primary].Name, col.Name)
			}
			tt.primary = cdx
		}
		if col.AutoIncrement {
			if tt.auto >= 0 {
				return nil, fmt.Errorf("sql: table %s: multiple auto increment columns: %s and %s",
					name, columns[tt.auto].Name, col.Name)
			}
			tt.auto = cdx
		}
	}
	if tt.primary < 0 {
		return nil, fmt.Errorf("sql: table %s: must have a primary key column", name)
	}
	return tt, nil
}

func (tt *TableType) Name() string {
	return tt.name
}

// Columns returns the columns in declaration order; the caller must not
// modify the returned slice.
func (tt *TableType) Columns() []Column {
	return tt.columns
}

// ColumnNames returns the column names in declaration order.
func (tt *TableType) ColumnNames() []string {
	names := make([]string, len(tt.columns))
	for cdx, col := range tt.columns {
		names[cdx] = col.Name
	}
	return names
}

// Column returns the named column or nil.
func (tt *TableType) Column(name string) *Column {
	cdx, ok := tt.byName[name]
	if !ok {
		return nil
	}
	return &tt.columns[cdx]
}

// PrimaryKey returns the primary key column.
func (tt *TableType) PrimaryKey() Column {
	return tt.columns[tt.primary]
}

// AutoIncrement returns the auto increment column or nil if the table has
// none.
func (tt *TableType) AutoIncrement() *Column {
	if tt.auto < 0 {
		return nil
	}
	return &tt.columns[tt.auto]
}

func (tt *TableType) String() string {
	return tt.name
}
