package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ValueKind identifies which member of the Value union is set
type ValueKind int

const (
	// KindNull is an absent or explicit null value
	KindNull ValueKind = iota

	// KindString is free text
	KindString

	// KindNumber is a numeric scalar
	KindNumber

	// KindDate is a calendar date or timestamp
	KindDate
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is an untyped scalar field value as produced by extraction
type Value struct {
	kind ValueKind
	str  string
	num  float64
	date time.Time
}

// Null returns the null value
func Null() Value { return Value{} }

// String returns a text value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Date returns a date value
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// ValueOf converts an arbitrary Go scalar into a Value
func ValueOf(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case time.Time:
		return Date(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Date(*x)
	case bool:
		return String(cast.ToString(x))
	}

	if n, err := cast.ToFloat64E(v); err == nil {
		return Number(n)
	}
	return String(cast.ToString(v))
}

// Kind returns the active union member
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the canonical string form used by every comparison path
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return cast.ToString(v.num)
	case KindDate:
		if v.date.Hour() == 0 && v.date.Minute() == 0 && v.date.Second() == 0 && v.date.Nanosecond() == 0 {
			return v.date.Format("2006-01-02")
		}
		return v.date.Format(time.RFC3339)
	default:
		return ""
	}
}

// IsBlank reports whether the value carries no usable content
func (v Value) IsBlank() bool {
	if v.kind == KindNull {
		return true
	}
	if v.kind != KindString {
		return false
	}
	s := strings.TrimSpace(v.str)
	return s == "" || strings.EqualFold(s, "null")
}

// MarshalJSON encodes the value as a JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindDate:
		return json.Marshal(v.Text())
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON string, number, boolean or null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode field value: %w", err)
	}

	switch x := raw.(type) {
	case string:
		*v = String(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric field value %q: %w", x.String(), err)
		}
		*v = Number(n)
	case bool:
		*v = String(cast.ToString(x))
	default:
		return fmt.Errorf("unsupported field value type %T", raw)
	}
	return nil
}

// Field is a single named value in a record
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value Value  `json:"value" yaml:"-"`
}

// Record is an extracted source-system record
type Record struct {
	RecordID     string  `json:"recordId"`
	ObjectType   string  `json:"objectType,omitempty"`
	SourceSystem string  `json:"sourceSystem,omitempty"`
	Fields       []Field `json:"fields"`
}

// NewRecord builds a record from alternating name/value pairs in order
func NewRecord(id string, kv ...interface{}) Record {
	rec := Record{RecordID: id}
	for i := 0; i+1 < len(kv); i += 2 {
		name := cast.ToString(kv[i])
		rec.Fields = append(rec.Fields, Field{Name: name, Value: ValueOf(kv[i+1])})
	}
	return rec
}

// Get returns the value for a field name
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Null(), false
}

// FieldMap returns field name -> value
func (r Record) FieldMap() map[string]Value {
	m := make(map[string]Value, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}
