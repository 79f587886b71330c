package models

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PreservesObjectOrder(t *testing.T) {
	v, err := Decode(strings.NewReader(`{"zeta": 1, "alpha": {"b": 2, "a": 3}, "mid": [1, "x", null]}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok, "expected *Object, got %T", v)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	inner, _ := obj.Get("alpha")
	assert.Equal(t, []string{"b", "a"}, inner.(*Object).Keys())

	mid, _ := obj.Get("mid")
	assert.Equal(t, []Value{json.Number("1"), "x", nil}, mid)
}

func TestDecode_KeepsNumberLiterals(t *testing.T) {
	v, err := Decode(strings.NewReader(`[9.80, 7, 1e1]`))
	require.NoError(t, err)

	assert.Equal(t, []Value{json.Number("9.80"), json.Number("7"), json.Number("1e1")}, v)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrEmptyDocument},
		{name: "whitespace", input: "  \n\t", wantErr: ErrEmptyDocument},
		{name: "trailing", input: `[] []`, wantErr: ErrTrailingData},
		{name: "truncated array", input: `[1, 2`, wantErr: io.ErrUnexpectedEOF},
		{name: "truncated object", input: `{"a": 1`, wantErr: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_SyntaxError(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"a": }`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyDocument)
}

func TestDecode_NestingLimit(t *testing.T) {
	nested := func(depth int) string {
		return strings.Repeat("[", depth) + strings.Repeat("]", depth)
	}

	_, err := Decode(strings.NewReader(nested(maxDepth)))
	require.NoError(t, err)

	_, err = Decode(strings.NewReader(nested(maxDepth + 1)))
	assert.ErrorIs(t, err, ErrTooDeep)

	// fails fast without reading the rest of a huge document
	_, err = Decode(strings.NewReader(nested(3 << 20)))
	assert.ErrorIs(t, err, ErrTooDeep)

	mixed := strings.Repeat(`{"a":[`, maxDepth/2) + "1" + strings.Repeat("]}", maxDepth/2)
	_, err = Decode(strings.NewReader(mixed))
	require.NoError(t, err)

	_, err = Decode(strings.NewReader(`[` + mixed + `]`))
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestObject_SetDuplicateKeepsPosition(t *testing.T) {
	obj := NewObject(Field{Key: "a", Value: "1"}, Field{Key: "b", Value: "2"})
	obj.Set("a", "3")

	assert.Equal(t, []string{"a", "b"}, obj.Keys())

	v, ok := obj.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestObject_MarshalJSON(t *testing.T) {
	v, err := DecodeBytes([]byte(`{"z": 1.50, "a": {"y": true, "x": null}, "l": ["q"]}`))
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1.50,"a":{"y":true,"x":null},"l":["q"]}`, string(out))
}

func TestEntries(t *testing.T) {
	obj, err := DecodeBytes([]byte(`{"b": 1, "a": 2}`))
	require.NoError(t, err)

	entries := Entries(obj)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, json.Number("1"), entries[0].Value)
	assert.Equal(t, "a", entries[1].Key)

	arr, err := DecodeBytes([]byte(`["x", 3]`))
	require.NoError(t, err)

	entries = Entries(arr)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[1].Index)
	assert.Empty(t, entries[1].Key)

	assert.Empty(t, Entries("scalar"))
	assert.Empty(t, Entries(nil))
}

func TestFormatScalar(t *testing.T) {
	nested := NewObject(Field{Key: "k", Value: "v"})

	tests := []struct {
		in   Value
		want string
	}{
		{nil, ""},
		{"CWE-79", "CWE-79"},
		{json.Number("9.8"), "9.8"},
		{true, "true"},
		{nested, `{"k":"v"}`},
		{[]Value{"a", json.Number("1")}, `["a",1]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScalar(tt.in))
	}
}

func TestTable_HasColumnAndSubset(t *testing.T) {
	rec := Record{Fields: NewObject(Field{Key: FieldCWEID, Value: "CWE-1"}), Score: 1}
	table := &Table{Columns: []string{FieldCWEID, "extra"}, Records: []Record{rec, rec}}

	assert.True(t, table.HasColumn("extra"))
	assert.False(t, table.HasColumn("missing"))

	sub := table.Subset(table.Records[:1])
	assert.Equal(t, 1, sub.Len())
	assert.Equal(t, table.Columns, sub.Columns)
	assert.Equal(t, "CWE-1", sub.Records[0].CWEID())
}
