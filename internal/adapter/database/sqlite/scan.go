package sqlite

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"
)

var (
	fieldIndexes sync.Map // reflect.Type -> map[string][]int
	timeType     = reflect.TypeOf(time.Time{})
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ScanOne reads the next row of rows into a T. It returns sql.ErrNoRows when
// the result set is empty.
func ScanOne[T any](rows *sql.Rows) (T, error) {
	var dest T

	plan, err := planFor(rows, reflect.TypeOf(dest))
	if err != nil {
		return dest, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return dest, err
		}

		return dest, sql.ErrNoRows
	}

	err = plan.scan(rows, reflect.ValueOf(&dest).Elem())

	return dest, err
}

// ScanAll drains rows into a slice of T. The result is never nil.
func ScanAll[T any](rows *sql.Rows) ([]T, error) {
	var zero T

	plan, err := planFor(rows, reflect.TypeOf(zero))
	if err != nil {
		return nil, err
	}

	out := make([]T, 0)

	for rows.Next() {
		var dest T

		if err := plan.scan(rows, reflect.ValueOf(&dest).Elem()); err != nil {
			return nil, err
		}

		out = append(out, dest)
	}

	return out, rows.Err()
}

// scanPlan holds, per result column, the index of the struct field it lands
// in. Columns with no matching field are read and dropped.
type scanPlan struct {
	columns []string
	targets [][]int
}

func planFor(rows *sql.Rows, t reflect.Type) (*scanPlan, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scan target must be a struct, got %v", t)
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := fieldsOf(t)
	plan := &scanPlan{columns: columns, targets: make([][]int, len(columns))}

	for i, column := range columns {
		plan.targets[i] = fields[strings.ToLower(strings.Trim(column, "\"`"))]
	}

	return plan, nil
}

func (p *scanPlan) scan(rows *sql.Rows, dest reflect.Value) error {
	raw := make([]any, len(p.columns))
	ptrs := make([]any, len(raw))

	for i := range raw {
		ptrs[i] = &raw[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return err
	}

	for i, target := range p.targets {
		if target == nil || raw[i] == nil {
			continue
		}

		if err := assign(dest.FieldByIndex(target), raw[i]); err != nil {
			return fmt.Errorf("column %s: %w", p.columns[i], err)
		}
	}

	return nil
}

// fieldsOf indexes the exported fields of t by db tag, snake_case name and
// lowercased name.
func fieldsOf(t reflect.Type) map[string][]int {
	if cached, ok := fieldIndexes.Load(t); ok {
		return cached.(map[string][]int)
	}

	fields := make(map[string][]int, t.NumField()*2)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")

		if !field.IsExported() || tag == "-" {
			continue
		}

		if tag != "" {
			fields[strings.ToLower(tag)] = field.Index
			continue
		}

		fields[toSnake(field.Name)] = field.Index
		fields[strings.ToLower(field.Name)] = field.Index
	}

	fieldIndexes.Store(t, fields)

	return fields
}

func toSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]) {
			b.WriteByte('_')
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

func assign(field reflect.Value, raw any) error {
	value := reflect.ValueOf(raw)

	if value.Type().AssignableTo(field.Type()) {
		field.Set(value)
		return nil
	}

	switch v := raw.(type) {
	case []byte:
		return assign(field, string(v))
	case int64:
		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			field.SetInt(v)
			return nil
		case reflect.Bool:
			field.SetBool(v != 0)
			return nil
		}
	case float64:
		if field.Kind() == reflect.Float32 || field.Kind() == reflect.Float64 {
			field.SetFloat(v)
			return nil
		}
	case string:
		if field.Type() == timeType {
			parsed, err := parseTimestamp(v)
			if err != nil {
				return err
			}

			field.Set(reflect.ValueOf(parsed))
			return nil
		}

		if field.Kind() == reflect.String {
			field.SetString(v)
			return nil
		}
	}

	return fmt.Errorf("cannot assign %T to %s", raw, field.Type())
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
