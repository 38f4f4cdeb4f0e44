package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is a single cell. It holds nil, string, int64, float64, bool or time.Time.
type Value = interface{}

// Row is one stored row, aligned to the owning table's Columns
type Row []Value

// Table is a named dataset: an ordered header and ordered rows
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given header
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    []Row{},
	}
}

// ColumnIndex returns the position of a column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i for the named column. Missing columns and
// short rows read as nil.
func (t *Table) Cell(i int, column string) Value {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	idx := t.ColumnIndex(column)
	if idx < 0 || idx >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][idx]
}

// Text is Cell rendered with FormatValue
func (t *Table) Text(i int, column string) string {
	return FormatValue(t.Cell(i, column))
}

// Clone returns a deep copy of the header and row slices
func (t *Table) Clone() *Table {
	c := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append(Row(nil), row...)
	}
	return c
}

// Normalize pads or trims every row to the header width
func (t *Table) Normalize() {
	width := len(t.Columns)
	for i, row := range t.Rows {
		switch {
		case len(row) < width:
			t.Rows[i] = append(row, make(Row, width-len(row))...)
		case len(row) > width:
			t.Rows[i] = row[:width]
		}
	}
}

// Field is one named value of a Record
type Field struct {
	Name  string
	Value Value
}

// Record is a single submission: field names in insertion order with their
// values. The zero Record is empty.
type Record struct {
	fields []Field
}

// NewRecord builds a record. A repeated name keeps its first position and
// takes the last value.
func NewRecord(fields ...Field) Record {
	r := Record{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		if i := r.index(f.Name); i >= 0 {
			r.fields[i].Value = f.Value
			continue
		}
		r.fields = append(r.fields, f)
	}
	return r
}

func (r Record) index(name string) int {
	for i, f := range r.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.fields)
}

// Keys returns the field names in insertion order
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the fields in insertion order
func (r Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Get returns the value for name
func (r Record) Get(name string) (Value, bool) {
	if i := r.index(name); i >= 0 {
		return r.fields[i].Value, true
	}
	return nil, false
}

// With returns a new record with name set to v
func (r Record) With(name string, v Value) Record {
	return NewRecord(append(r.Fields(), Field{Name: name, Value: v})...)
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// FormatValue renders a cell as text. nil renders as the empty string.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(DateLayout)
		}
		return val.Format(DateTimeLayout)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ParseValue infers a typed cell from text written by FormatValue. Text
// that FormatValue would not write back unchanged, such as "007" or "1e3",
// stays a string. Stores never reinterpret stored text with it.
func ParseValue(s string) Value {
	if s == "" {
		return nil
	}
	if v := inferValue(s); FormatValue(v) == s {
		return v
	}
	return s
}

func inferValue(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN") {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	for _, layout := range []string{DateLayout, DateTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return s
}

// NormalizeValue converts driver and caller values to the cell types above
func NormalizeValue(v Value) Value {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	default:
		return v
	}
}
