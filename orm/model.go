package orm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/leftmike/miniorm/sql"
)

// Model is embedded in row structs to make them records. It tracks whether
// the record has been deleted and binds the record to its row type's field
// mapping the first time the record passes through a manager.
//
//	type Account struct {
//	    orm.Model
//	    ID     int64  `db:"id,pk,auto"`
//	    Name   string `db:"name"`
//	    Amount int64  `db:"amount"`
//	}
type Model struct {
	info    *rowInfo
	rec     Record
	deleted bool
}

// Record is implemented by pointers to structs that embed Model.
type Record interface {
	model() *Model
}

func (mdl *Model) model() *Model {
	return mdl
}

// Deleted reports whether the record has been deleted; a deleted record is
// terminal and rejects further insert, update, and delete operations.
func (mdl *Model) Deleted() bool {
	return mdl.deleted
}

func (mdl *Model) bind(info *rowInfo, rec Record) {
	if mdl.info == nil {
		mdl.info = info
		mdl.rec = rec
	}
}

// String identifies the record by its primary key, as TypeName{pk: value}.
func (mdl *Model) String() string {
	if mdl.info == nil {
		return "record{unbound}"
	}
	fi := mdl.info.fields[mdl.info.pkField]
	return fmt.Sprintf("%s{%s: %v}", mdl.info.typ.Name(), fi.column,
		mdl.info.value(mdl.rec, mdl.info.pkField))
}

type fieldInfo struct {
	column string
	index  int // field index within the row struct
	pk     bool
	auto   bool
}

// rowInfo is the field mapping of one row type: one struct field per table
// column, in table column order. It is made once at registration and shared
// by every manager instance for the row type.
type rowInfo struct {
	typ     reflect.Type // the row struct type
	fields  []fieldInfo
	pkField int
}

var modelType = reflect.TypeOf(Model{})

// parseFields walks the exported fields of a row struct and returns one
// fieldInfo per column, in struct declaration order. The struct must embed
// Model. Fields are mapped by `db` tags, or by their lowercased name; a tag
// of "-" skips the field, and the options "pk" and "auto" mark the primary
// key and auto increment columns.
func parseFields(rec Record) (reflect.Type, []fieldInfo, error) {
	typ := reflect.TypeOf(rec)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("orm: row type must be a pointer to a struct; got %T", rec)
	}
	typ = typ.Elem()

	var fields []fieldInfo
	for fdx := 0; fdx < typ.NumField(); fdx += 1 {
		sf := typ.Field(fdx)
		if sf.Anonymous && sf.Type == modelType {
			continue
		}
		if sf.PkgPath != "" { // unexported
			continue
		}

		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		fi := fieldInfo{column: strings.ToLower(sf.Name), index: fdx}
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				fi.column = parts[0]
			}
			for _, opt := range parts[1:] {
				switch opt {
				case "pk":
					fi.pk = true
				case "auto":
					fi.auto = true
				default:
					return nil, nil, fmt.Errorf("orm: %s.%s: unknown db tag option %q",
						typ.Name(), sf.Name, opt)
				}
			}
		}
		fields = append(fields, fi)
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("orm: %s: no mapped fields", typ.Name())
	}
	return typ, fields, nil
}

// TableTypeOf derives a table type from a row struct's fields and db tags.
func TableTypeOf(tableName string, rec Record) (*sql.TableType, error) {
	_, fields, err := parseFields(rec)
	if err != nil {
		return nil, err
	}

	columns := make([]sql.Column, 0, len(fields))
	for _, fi := range fields {
		columns = append(columns,
			sql.Column{Name: fi.column, PrimaryKey: fi.pk, AutoIncrement: fi.auto})
	}
	return sql.MakeTableType(tableName, columns)
}

// makeRowInfo maps the fields of a row struct onto the columns of a table
// type, in table column order. Every table column must have a field.
func makeRowInfo(rec Record, tt *sql.TableType) (*rowInfo, error) {
	typ, fields, err := parseFields(rec)
	if err != nil {
		return nil, err
	}

	byColumn := map[string]fieldInfo{}
	for _, fi := range fields {
		if _, ok := byColumn[fi.column]; ok {
			return nil, fmt.Errorf("orm: %s: duplicate column %s", typ.Name(), fi.column)
		}
		byColumn[fi.column] = fi
	}

	info := &rowInfo{typ: typ, pkField: -1}
	for _, col := range tt.Columns() {
		fi, ok := byColumn[col.Name]
		if !ok {
			return nil, fmt.Errorf("orm: %s: no field for column %s of table %s", typ.Name(),
				col.Name, tt)
		}
		delete(byColumn, col.Name)

		fi.pk = col.PrimaryKey
		fi.auto = col.AutoIncrement
		if fi.pk {
			info.pkField = len(info.fields)
		}
		info.fields = append(info.fields, fi)
	}
	for column := range byColumn {
		return nil, fmt.Errorf("orm: %s: field column %s is not a column of table %s",
			typ.Name(), column, tt)
	}
	return info, nil
}

func (info *rowInfo) newRecord() Record {
	rec := reflect.New(info.typ).Interface().(Record)
	rec.model().bind(info, rec)
	return rec
}

// value returns the current value of one mapped field; a nil pointer or
// interface field is the NULL value.
func (info *rowInfo) value(rec Record, fdx int) sql.Value {
	fv := reflect.ValueOf(rec).Elem().Field(info.fields[fdx].index)
	switch fv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

// coerce converts an engine value into a value of type ft, handling the
// numeric, string, bytes, and bool representations drivers commonly return.
func (info *rowInfo) coerce(fi fieldInfo, ft reflect.Type, val sql.Value) (reflect.Value,
	error) {

	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(ft) {
		return rv, nil
	}

	cv := reflect.New(ft).Elem()
	switch ft.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			cv.SetInt(rv.Int())
			return cv, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			cv.SetInt(int64(rv.Uint()))
			return cv, nil
		case reflect.Float32, reflect.Float64:
			cv.SetInt(int64(rv.Float()))
			return cv, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			cv.SetUint(uint64(rv.Int()))
			return cv, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			cv.SetUint(rv.Uint())
			return cv, nil
		}
	case reflect.Float32, reflect.Float64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			cv.SetFloat(float64(rv.Int()))
			return cv, nil
		case reflect.Float32, reflect.Float64:
			cv.SetFloat(rv.Float())
			return cv, nil
		}
	case reflect.String:
		if b, ok := val.([]byte); ok {
			cv.SetString(string(b))
			return cv, nil
		}
	case reflect.Slice:
		if ft.Elem().Kind() == reflect.Uint8 {
			if s, ok := val.(string); ok {
				cv.SetBytes([]byte(s))
				return cv, nil
			}
		}
	case reflect.Bool:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			cv.SetBool(rv.Int() != 0)
			return cv, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("orm: %s.%s: cannot store %v: %T", info.typ.Name(),
		fi.column, val, val)
}

// setValue stores an engine value into one mapped field.
func (info *rowInfo) setValue(rec Record, fdx int, val sql.Value) error {
	fi := info.fields[fdx]
	fv := reflect.ValueOf(rec).Elem().Field(fi.index)

	if val == nil {
		switch fv.Kind() {
		case reflect.Ptr, reflect.Interface:
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		return fmt.Errorf("orm: %s.%s: cannot store NULL in %s", info.typ.Name(), fi.column,
			fv.Type())
	}

	if fv.Kind() == reflect.Ptr {
		cv, err := info.coerce(fi, fv.Type().Elem(), val)
		if err != nil {
			return err
		}
		pv := reflect.New(fv.Type().Elem())
		pv.Elem().Set(cv)
		fv.Set(pv)
		return nil
	}

	cv, err := info.coerce(fi, fv.Type(), val)
	if err != nil {
		return err
	}
	fv.Set(cv)
	return nil
}

// setChanged stores an engine value into one mapped field only if it differs
// from the field's current value; it reports whether the field changed.
func (info *rowInfo) setChanged(rec Record, fdx int, val sql.Value) (bool, error) {
	cur := info.value(rec, fdx)
	if cur == nil && val == nil {
		return false, nil
	}
	if val != nil && cur != nil {
		fi := info.fields[fdx]
		fv := reflect.ValueOf(rec).Elem().Field(fi.index)
		ft := fv.Type()
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		cv, err := info.coerce(fi, ft, val)
		if err != nil {
			return false, err
		}
		if reflect.DeepEqual(cur, cv.Interface()) {
			return false, nil
		}
	}
	return true, info.setValue(rec, fdx, val)
}
