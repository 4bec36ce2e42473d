package nska

import (
	"fmt"
	"time"
)

// Kind represents the type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt  // signed 64-bit integer
	KindUint // unsigned integer above math.MaxInt64
	KindFloat
	KindStr
	KindBytes
	KindTime
	KindUID // Reference into the record table
	KindList
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindUID:
		return "uid"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a decoded archive value: a record, a flattened node or anything in
// between. Exactly one payload field is meaningful, selected by kind.
type Value struct {
	kind Kind

	boolVal  bool
	intVal   int64
	uintVal  uint64
	floatVal float64
	strVal   string
	bytesVal []byte
	timeVal  time.Time

	listVal []*Value
	mapVal  []MapEntry
}

// MapEntry represents a key-value pair in a map.
type MapEntry struct {
	Key   string
	Value *Value
}

// ============================================================
// Constructors
// ============================================================

// Null creates a null value.
func Null() *Value {
	return &Value{kind: KindNull}
}

// Bool creates a boolean value.
func Bool(v bool) *Value {
	return &Value{kind: KindBool, boolVal: v}
}

// Int creates a signed integer value.
func Int(v int64) *Value {
	return &Value{kind: KindInt, intVal: v}
}

// Uint creates an unsigned integer value. Values that fit in an int64 are
// stored as KindInt so that equal numbers compare equal.
func Uint(v uint64) *Value {
	if v <= 1<<63-1 {
		return Int(int64(v))
	}
	return &Value{kind: KindUint, uintVal: v}
}

// Float creates a floating point value.
func Float(v float64) *Value {
	return &Value{kind: KindFloat, floatVal: v}
}

// Str creates a string value.
func Str(v string) *Value {
	return &Value{kind: KindStr, strVal: v}
}

// Bytes creates a byte blob value.
func Bytes(v []byte) *Value {
	return &Value{kind: KindBytes, bytesVal: v}
}

// Time creates a date value.
func Time(v time.Time) *Value {
	return &Value{kind: KindTime, timeVal: v}
}

// UID creates a reference to record uid.
func UID(uid uint64) *Value {
	return &Value{kind: KindUID, uintVal: uid}
}

// List creates a list value.
func List(values ...*Value) *Value {
	if values == nil {
		values = []*Value{}
	}
	return &Value{kind: KindList, listVal: values}
}

// Map creates a map value from key-value pairs.
func Map(entries ...MapEntry) *Value {
	if entries == nil {
		entries = []MapEntry{}
	}
	return &Value{kind: KindMap, mapVal: entries}
}

// Entry creates a MapEntry for use in Map construction.
func Entry(key string, value *Value) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the value kind.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull returns true if this is a null value.
func (v *Value) IsNull() bool {
	return v == nil || v.kind == KindNull
}

// IsContainer returns true for lists and maps.
func (v *Value) IsContainer() bool {
	return v != nil && (v.kind == KindList || v.kind == KindMap)
}

// IsScalar returns true for everything that is neither a container nor a reference.
func (v *Value) IsScalar() bool {
	return !v.IsContainer() && v.Kind() != KindUID
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	if err := v.expect(KindBool); err != nil {
		return false, err
	}
	return v.boolVal, nil
}

// AsInt returns the signed integer value.
func (v *Value) AsInt() (int64, error) {
	if err := v.expect(KindInt); err != nil {
		return 0, err
	}
	return v.intVal, nil
}

// AsUint returns the unsigned integer value. Non-negative KindInt values are
// accepted too.
func (v *Value) AsUint() (uint64, error) {
	if v != nil && v.kind == KindInt && v.intVal >= 0 {
		return uint64(v.intVal), nil
	}
	if err := v.expect(KindUint); err != nil {
		return 0, err
	}
	return v.uintVal, nil
}

// AsFloat returns the float value.
func (v *Value) AsFloat() (float64, error) {
	if err := v.expect(KindFloat); err != nil {
		return 0, err
	}
	return v.floatVal, nil
}

// AsStr returns the string value.
func (v *Value) AsStr() (string, error) {
	if err := v.expect(KindStr); err != nil {
		return "", err
	}
	return v.strVal, nil
}

// AsBytes returns the byte blob.
func (v *Value) AsBytes() ([]byte, error) {
	if err := v.expect(KindBytes); err != nil {
		return nil, err
	}
	return v.bytesVal, nil
}

// AsTime returns the date value.
func (v *Value) AsTime() (time.Time, error) {
	if err := v.expect(KindTime); err != nil {
		return time.Time{}, err
	}
	return v.timeVal, nil
}

// AsUID returns the referenced record index.
func (v *Value) AsUID() (uint64, error) {
	if err := v.expect(KindUID); err != nil {
		return 0, err
	}
	return v.uintVal, nil
}

// AsList returns the list elements.
func (v *Value) AsList() ([]*Value, error) {
	if err := v.expect(KindList); err != nil {
		return nil, err
	}
	return v.listVal, nil
}

// AsMap returns the map entries.
func (v *Value) AsMap() ([]MapEntry, error) {
	if err := v.expect(KindMap); err != nil {
		return nil, err
	}
	return v.mapVal, nil
}

func (v *Value) expect(k Kind) error {
	if v == nil {
		return fmt.Errorf("nska: nil value")
	}
	if v.kind != k {
		return fmt.Errorf("nska: expected %s, got %s", k, v.kind)
	}
	return nil
}

// Len returns the length of a list or map.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindList:
		return len(v.listVal)
	case KindMap:
		return len(v.mapVal)
	default:
		return 0
	}
}

// Get returns a map value by key, or nil.
func (v *Value) Get(key string) *Value {
	if v.Kind() != KindMap {
		return nil
	}
	for _, e := range v.mapVal {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Has reports whether a map contains key.
func (v *Value) Has(key string) bool {
	return v.Get(key) != nil
}

// Index returns the i-th element of a list.
func (v *Value) Index(i int) (*Value, error) {
	if v.Kind() != KindList {
		return nil, fmt.Errorf("nska: not a list")
	}
	if i < 0 || i >= len(v.listVal) {
		return nil, fmt.Errorf("nska: index %d out of bounds (len=%d)", i, len(v.listVal))
	}
	return v.listVal[i], nil
}

// ============================================================
// Mutators
// ============================================================

// Set sets a map value, replacing an existing entry with the same key.
func (v *Value) Set(key string, val *Value) {
	if v.Kind() != KindMap {
		panic("nska: cannot set on non-map")
	}
	for i := range v.mapVal {
		if v.mapVal[i].Key == key {
			v.mapVal[i].Value = val
			return
		}
	}
	v.mapVal = append(v.mapVal, MapEntry{Key: key, Value: val})
}

// Append adds a value to a list.
func (v *Value) Append(val *Value) {
	if v.Kind() != KindList {
		panic("nska: cannot append to non-list")
	}
	v.listVal = append(v.listVal, val)
}

// Equal reports deep equality. Map entry order is ignored.
func (v *Value) Equal(o *Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindBool:
		return v.boolVal == o.boolVal
	case KindInt:
		return v.intVal == o.intVal
	case KindUint, KindUID:
		return v.uintVal == o.uintVal
	case KindFloat:
		return v.floatVal == o.floatVal
	case KindStr:
		return v.strVal == o.strVal
	case KindBytes:
		return string(v.bytesVal) == string(o.bytesVal)
	case KindTime:
		return v.timeVal.Equal(o.timeVal)
	case KindList:
		if len(v.listVal) != len(o.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(o.listVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapVal) != len(o.mapVal) {
			return false
		}
		for _, e := range v.mapVal {
			other := o.Get(e.Key)
			if other == nil || !e.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}
