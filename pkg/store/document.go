package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document is the decoded form of a persisted JSON object
// Numbers decode as json.Number so integers survive a read-modify-write unchanged
type Document map[string]interface{}

// Lookup walks path through nested objects
// The boolean is false when a segment is missing or an intermediate value is not an object
func (d Document) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = d
	for _, seg := range path {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Put sets value at path, creating (or replacing non-object) intermediate values with objects
func (d Document) Put(path []string, value interface{}) error {
	if len(path) == 0 {
		return errors.New("path is required")
	}

	cur := map[string]interface{}(d)
	for _, seg := range path[:len(path)-1] {
		next, ok := asObject(cur[seg])
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
	return nil
}

// Remove deletes the value at path and reports whether anything was removed
func (d Document) Remove(path ...string) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := d.Lookup(path[:len(path)-1]...)
	if !ok {
		return false
	}
	obj, ok := asObject(parent)
	if !ok {
		return false
	}
	if _, ok := obj[path[len(path)-1]]; !ok {
		return false
	}
	delete(obj, path[len(path)-1])
	return true
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, true
	case Document:
		return obj, true
	default:
		return nil, false
	}
}

// DecodeDocument parses data as exactly one JSON object
// Any other content is reported as ErrCorruptData
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	if err := dec.Decode(new(interface{})); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrCorruptData)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrCorruptData)
	}
	return Document(obj), nil
}

// EncodeDocument renders doc as indented JSON with a trailing newline
func EncodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Normalize converts value into its decoded JSON form (objects, slices, json.Number, ...)
func Normalize(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return v, nil
}

// ToDocument converts an object-shaped value into a Document via its JSON form
func ToDocument(value interface{}) (Document, error) {
	switch v := value.(type) {
	case Document:
		return v, nil
	case map[string]interface{}:
		return Document(v), nil
	}

	v, err := Normalize(value)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("document root must be a JSON object, got %T", value)
	}
	return Document(obj), nil
}

// Decode converts a value returned by Get into out through its JSON form
func Decode(value interface{}, out interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}
