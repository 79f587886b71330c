package models

import (
	"encoding/json"
	"strconv"
)

// Required vulnerability fields.
const (
	FieldCWEID     = "cwe_id"
	FieldCVSSScore = "cvss_score"
	FieldSeverity  = "severity"
)

// RequiredFields lists the fields every VulnerabilityRecord must carry, in column order.
var RequiredFields = []string{FieldCWEID, FieldCVSSScore, FieldSeverity}

// Entry is one element of an uploaded document before validation.
// Key is set when the element came from a top-level object.
type Entry struct {
	Value Value
	Key   string
	Index int
}

// Entries lists the candidate records of a decoded document.
// Objects yield their values in document order, arrays their elements,
// anything else yields nothing.
func Entries(data Value) []Entry {
	switch d := data.(type) {
	case *Object:
		entries := make([]Entry, 0, d.Len())
		for i, f := range d.fields {
			entries = append(entries, Entry{Index: i, Key: f.Key, Value: f.Value})
		}

		return entries
	case []Value:
		entries := make([]Entry, 0, len(d))
		for i, v := range d {
			entries = append(entries, Entry{Index: i, Value: v})
		}

		return entries
	default:
		return nil
	}
}

// Record is a validated vulnerability. Fields keeps every uploaded field;
// Score is the parsed cvss_score.
type Record struct {
	Fields *Object
	Score  float64
}

// CWEID returns the weakness identifier as text.
func (r Record) CWEID() string {
	v, _ := r.Fields.Get(FieldCWEID)

	return FormatScalar(v)
}

// Severity returns the severity label.
func (r Record) Severity() string {
	v, _ := r.Fields.Get(FieldSeverity)

	return FormatScalar(v)
}

// MarshalJSON encodes the record as its original object.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.Fields.MarshalJSON()
}

// Table is the analysis-ready RecordSet. Columns is the union of field
// names in first-seen order.
type Table struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Records)
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}

	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}

	return false
}

// Subset returns a table with the same columns holding only the given records.
func (t *Table) Subset(records []Record) *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)

	return &Table{Columns: cols, Records: records}
}

// IsNested reports whether v is an object or array.
func IsNested(v Value) bool {
	switch v.(type) {
	case *Object, []Value:
		return true
	default:
		return false
	}
}

// KindOf names the JSON kind of v.
func KindOf(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []Value:
		return "array"
	case *Object:
		return "object"
	default:
		return "unknown"
	}
}

// FormatScalar renders a value as a table cell. Numbers keep their JSON
// literal and nested values are compact JSON.
func FormatScalar(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}

		return string(b)
	}
}
