package postgres

import (
	"reflect"
	"sync"
)

// dbField is one `db`-tagged column of a struct, embedded structs flattened.
type dbField struct {
	column string
	index  []int
}

var fieldCache sync.Map // reflect.Type -> []dbField

func dbFields(t reflect.Type) []dbField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]dbField)
	}
	fields := collectFields(t, nil)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []dbField {
	var out []dbField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, collectFields(f.Type, index)...)
			continue
		}

		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		out = append(out, dbField{column: tag, index: index})
	}
	return out
}

func structType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// ExtractDBColumns lists the columns of T in field order. Repositories call
// it once at construction.
func ExtractDBColumns[T any]() []string {
	t, ok := structType(reflect.TypeFor[T]())
	if !ok {
		return nil
	}
	fields := dbFields(t)
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// StructToMap maps each `db` column of v to its field value. It returns nil
// for non-struct values.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	fields := dbFields(rv.Type())
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return out
}
