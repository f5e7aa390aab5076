package dto

import (
	"bytes"
	"encoding/json"
)

// ProgressField is one (name, value) pair of an output row.
type ProgressField struct {
	Name  string
	Value interface{}
}

// ProgressRow is an ordered set of enabled fields. It marshals to a JSON
// object whose key order follows assembly order, so the field table stays the
// single source of truth for output shape. Disabled fields are absent, not
// null; an empty row marshals to {}.
type ProgressRow []ProgressField

// MarshalJSON implements ordered object encoding.
func (r ProgressRow) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the named field's value, for tests and exports.
func (r ProgressRow) Get(name string) (interface{}, bool) {
	for _, field := range r {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// ProgressQuery is the validated read-API input.
type ProgressQuery struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}
