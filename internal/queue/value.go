package queue

import (
	"encoding/json"
	"fmt"
)

// ValueKind identifies the payload type carried by a Value.
type ValueKind int

const (
	// KindString is a plain string value.
	KindString ValueKind = iota
	// KindNumber is a numeric value (JSON number).
	KindNumber
	// KindStringList is an ordered list of strings.
	KindStringList
)

// Value is the typed union a transaction may carry: a string, a number, or
// a list of strings. The zero Value is an empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	list []string
}

// String builds a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number builds a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int builds a numeric Value from an int.
func Int(n int) Value { return Number(float64(n)) }

// StringList builds a string-list Value. The slice is copied.
func StringList(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindStringList, list: cp}
}

// Kind returns the payload type.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload (empty unless Kind is KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (zero unless Kind is KindNumber).
func (v Value) Num() float64 { return v.num }

// AsInt returns the numeric payload truncated to int.
func (v Value) AsInt() int { return int(v.num) }

// List returns a copy of the string-list payload.
func (v Value) List() []string {
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindStringList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as its bare JSON payload.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindStringList:
		return json.Marshal(v.list)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// UnmarshalJSON decodes a bare JSON string, number, or string array.
// Any other payload type is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Number(n)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = StringList(list)
		return nil
	}
	return fmt.Errorf("transaction value must be a string, number, or string array (got %s)", data)
}
