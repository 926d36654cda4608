// Package manifest reads and writes JSON documents such as package.json and
// app.json without disturbing their key order.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Object is a JSON object that remembers the order of its keys. Values are
// *Object, []any, string, json.Number, bool or nil.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: map[string]any{}}
}

// Keys returns the keys in document order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// String returns the value of key if it is a string.
func (o *Object) String(key string) string {
	s, _ := o.values[key].(string)
	return s
}

// Object returns the nested object stored under key, or nil.
func (o *Object) Object(key string) *Object {
	obj, _ := o.values[key].(*Object)
	return obj
}

// Set replaces the value of an existing key in place or appends a new one.
func (o *Object) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Parse decodes a JSON document whose top level is an object.
func Parse(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, errors.New("failed to parse JSON: top level is not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("failed to parse JSON: trailing data after object")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		_, err = dec.Token()
		return obj, err
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		_, err = dec.Token()
		return arr, err
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// MarshalJSON writes keys in order and leaves <, > and & unescaped.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(&buf, o.values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// Format renders the document with two-space indentation and a trailing
// newline.
func Format(o *Object) ([]byte, error) {
	raw, err := o.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Merge folds src into dst and returns the result; neither input is changed.
// Every key of either side is kept. When both define a key, dst's value wins,
// whatever it is, except that two objects are merged recursively. Key order is
// dst's, followed by the keys only src has.
func Merge(dst, src *Object) *Object {
	out := NewObject()
	for _, k := range dst.keys {
		v := dst.values[k]
		if d, ok := v.(*Object); ok {
			if s := src.Object(k); s != nil {
				v = Merge(d, s)
			}
		}
		out.Set(k, v)
	}
	for _, k := range src.keys {
		if _, ok := dst.values[k]; !ok {
			out.Set(k, src.values[k])
		}
	}
	return out
}
