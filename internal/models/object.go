// Package models defines the data structures shared by the dashboard pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decoding errors.
var (
	ErrEmptyDocument    = errors.New("document is empty")
	ErrTrailingData     = errors.New("unexpected data after top-level value")
	ErrUnexpectedToken  = errors.New("unexpected JSON token")
	ErrNonStringObjKey  = errors.New("object key is not a string")
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrTooDeep          = errors.New("document nesting too deep")
)

// maxDepth bounds container nesting, matching encoding/json.
const maxDepth = 10000

// Value is a decoded JSON value. It holds one of nil, bool, string,
// json.Number, []Value or *Object.
type Value = any

// Field is a single key/value pair of an Object.
type Field struct {
	Key   string
	Value Value
}

// Object is a JSON object that remembers the order its keys were first seen.
type Object struct {
	index  map[string]int
	fields []Field
}

// NewObject creates an object from the given fields.
func NewObject(fields ...Field) *Object {
	obj := &Object{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		obj.Set(f.Key, f.Value)
	}

	return obj
}

// Set stores a value. A repeated key keeps its original position and takes the new value.
func (o *Object) Set(key string, v Value) {
	if o.index == nil {
		o.index = make(map[string]int)
	}

	if i, ok := o.index[key]; ok {
		o.fields[i].Value = v

		return
	}

	o.index[key] = len(o.fields)
	o.fields = append(o.fields, Field{Key: key, Value: v})
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}

	i, ok := o.index[key]
	if !ok {
		return nil, false
	}

	return o.fields[i].Value, true
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}

	return len(o.fields)
}

// Fields returns a copy of the fields in insertion order.
func (o *Object) Fields() []Field {
	if o == nil {
		return nil
	}

	out := make([]Field, len(o.fields))
	copy(out, o.fields)

	return out
}

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}

	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.Key
	}

	return keys
}

// MarshalJSON encodes the object with its keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, f := range o.fields {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Decode reads exactly one JSON document from r.
// Numbers are kept as json.Number and objects keep their key order.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}

		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}

		return nil, ErrTrailingData
	}

	return v, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(b []byte) (Value, error) {
	return Decode(bytes.NewReader(b))
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: exceeded %d levels", ErrTooDeep, maxDepth)
		}

		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedToken, t)
		}
	case string, json.Number, bool, nil:
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, tok)
	}
}

func decodeObject(dec *json.Decoder, depth int) (*Object, error) {
	obj := NewObject()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNonStringObjKey, tok)
		}

		v, err := decodeValue(dec, depth)
		if err != nil {
			return nil, unexpectedEOF(err)
		}

		obj.Set(key, v)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, unexpectedEOF(err)
	}

	return obj, nil
}

func decodeArray(dec *json.Decoder, depth int) ([]Value, error) {
	arr := []Value{}

	for dec.More() {
		v, err := decodeValue(dec, depth)
		if err != nil {
			return nil, unexpectedEOF(err)
		}

		arr = append(arr, v)
	}

	if _, err := dec.Token(); err != nil {
		return nil, unexpectedEOF(err)
	}

	return arr, nil
}

// A bare EOF inside a container means truncated input, not an empty document.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}
