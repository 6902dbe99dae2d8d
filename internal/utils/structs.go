package utils

import (
	"fmt"
	"reflect"
	"sync"
)

var ColumnTag = "db"

type column struct {
	name  string
	index int
}

// columnCache maps a struct type to its tagged exported fields.
var columnCache sync.Map

func structValue(input any) reflect.Value {
	v := reflect.ValueOf(input)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("utils: expected a struct or struct pointer, got %T", input))
	}
	return v
}

func columnsOf(t reflect.Type) []column {
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	columns := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get(ColumnTag)
		if name == "" || name == "-" {
			continue
		}
		columns = append(columns, column{name: name, index: i})
	}

	actual, _ := columnCache.LoadOrStore(t, columns)
	return actual.([]column)
}

// StructTagValues lists the column names of a row struct in field order.
func StructTagValues(input any) []string {
	columns := columnsOf(structValue(input).Type())

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// StructToMap returns column name to field value, ready for an insert.
func StructToMap(input any) map[string]any {
	v := structValue(input)
	columns := columnsOf(v.Type())

	values := make(map[string]any, len(columns))
	for _, c := range columns {
		values[c.name] = v.Field(c.index).Interface()
	}
	return values
}

func ErrorWrapOrNil(err error, msg string) error {
	if err == nil || msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
