package nska

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ============================================================
// Scalar text forms
// ============================================================

// ScalarText returns the text form of a scalar used by the JSON output:
//   - bytes: lowercase hex
//   - bool: true / false
//   - int, uint: base 10
//   - float: shortest round-trip form, -0 -> 0
//   - time: RFC 3339 with nanoseconds, UTC
//   - null: empty string
//
// Containers and references have no text form and yield their kind name.
//
// These are Go forms. Other NSKeyedArchiver deserializers may write
// True/False, 1.0 or "2001-01-01 00:00:00" for the same scalars, so JSON
// output is not byte-identical to theirs.
func ScalarText(v *Value) string {
	switch v.Kind() {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.boolVal)
	case KindInt:
		return strconv.FormatInt(v.intVal, 10)
	case KindUint:
		return strconv.FormatUint(v.uintVal, 10)
	case KindFloat:
		return floatText(v.floatVal)
	case KindStr:
		return v.strVal
	case KindBytes:
		return hex.EncodeToString(v.bytesVal)
	case KindTime:
		return v.timeVal.UTC().Format(time.RFC3339Nano)
	default:
		return v.Kind().String()
	}
}

func floatText(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	return strings.ReplaceAll(s, "E", "e")
}

// ============================================================
// Output Normalizer
// ============================================================

// Normalize returns a copy of v with every scalar replaced by its text form
// (see ScalarText). Container shapes and map entry order are preserved. The
// result is lossy: numbers and booleans can no longer be told apart from
// strings.
func Normalize(v *Value) *Value {
	switch v.Kind() {
	case KindList:
		items := make([]*Value, 0, len(v.listVal))
		for _, elem := range v.listVal {
			items = append(items, Normalize(elem))
		}
		return List(items...)
	case KindMap:
		entries := make([]MapEntry, 0, len(v.mapVal))
		for _, e := range v.mapVal {
			entries = append(entries, MapEntry{Key: e.Key, Value: Normalize(e.Value)})
		}
		return Map(entries...)
	default:
		return Str(ScalarText(v))
	}
}

// ToJSONValue converts a normalized tree to a Go interface{} suitable for
// json.Marshal. Non-normalized scalars are converted with ScalarText as well.
func ToJSONValue(v *Value) interface{} {
	switch v.Kind() {
	case KindList:
		items := make([]interface{}, 0, len(v.listVal))
		for _, elem := range v.listVal {
			items = append(items, ToJSONValue(elem))
		}
		return items
	case KindMap:
		obj := make(map[string]interface{}, len(v.mapVal))
		for _, e := range v.mapVal {
			obj[e.Key] = ToJSONValue(e.Value)
		}
		return obj
	default:
		return ScalarText(v)
	}
}
