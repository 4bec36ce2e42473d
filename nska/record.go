package nska

import (
	"fmt"
	"io"
	"sort"
	"time"

	"howett.net/plist"
)

// Reserved keys of the keyed archive layout.
const (
	keyObjects   = "$objects"
	keyTop       = "$top"
	keyArchiver  = "$archiver"
	keyClass     = "$class"
	keyClassName = "$classname"
	keyCFUID     = "CF$UID"
	nullRecord   = "$null"
)

// RecordTable is the flat $objects table of a keyed archive. It is built
// once per archive and never mutated afterwards.
type RecordTable struct {
	records  []*Value
	top      *Value
	archiver string
}

// LoadRecordTable decodes a binary plist stream into a record table. XML or
// other encodings are rejected; run them through Repair first.
func LoadRecordTable(r io.ReadSeeker) (*RecordTable, error) {
	var doc interface{}
	dec := plist.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, formatErrf("parse", err)
	}
	if dec.Format != plist.BinaryFormat {
		return nil, formatErrf("parse", fmt.Errorf("record table requires a binary plist, got %s", plist.FormatNames[dec.Format]))
	}
	root, err := fromPlist(doc)
	if err != nil {
		return nil, err
	}
	return NewRecordTable(root)
}

// NewRecordTable builds a record table from a decoded archive document.
func NewRecordTable(doc *Value) (*RecordTable, error) {
	if doc.Kind() != KindMap {
		return nil, &NotArchiveError{Missing: keyTop}
	}
	top := doc.Get(keyTop)
	if top == nil {
		return nil, &NotArchiveError{Missing: keyTop}
	}
	objects := doc.Get(keyObjects)
	if objects.Kind() != KindList {
		return nil, &NotArchiveError{Missing: keyObjects}
	}
	t := &RecordTable{records: objects.listVal, top: top}
	if a := doc.Get(keyArchiver); a.Kind() == KindStr {
		t.archiver = a.strVal
	}
	return t, nil
}

// Len returns the number of records.
func (t *RecordTable) Len() int {
	return len(t.records)
}

// Lookup returns the record at uid.
func (t *RecordTable) Lookup(uid uint64) (*Value, error) {
	if uid >= uint64(len(t.records)) {
		return nil, &ReferenceError{UID: uid, Len: len(t.records)}
	}
	return t.records[uid], nil
}

// Top returns the $top index value (normally a map of root name to UID).
func (t *RecordTable) Top() *Value {
	return t.top
}

// Archiver returns the $archiver name, usually "NSKeyedArchiver".
func (t *RecordTable) Archiver() string {
	return t.archiver
}

// ============================================================
// Generic plist tree <-> Value
// ============================================================

// fromPlist converts a tree decoded by howett.net/plist into a Value.
// Dictionary keys are sorted since the decoder does not keep their order.
func fromPlist(v interface{}) (*Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Uint(val), nil
	case int:
		return Int(int64(val)), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(float64(val)), nil
	case string:
		return Str(val), nil
	case []byte:
		return Bytes(val), nil
	case time.Time:
		return Time(val), nil
	case plist.UID:
		return UID(uint64(val)), nil

	case []interface{}:
		items := make([]*Value, 0, len(val))
		for i, elem := range val {
			item, err := fromPlist(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return List(items...), nil

	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, 0, len(val))
		for _, k := range keys {
			item, err := fromPlist(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict[%q]: %w", k, err)
			}
			entries = append(entries, MapEntry{Key: k, Value: item})
		}
		return Map(entries...), nil

	default:
		return nil, valueErrf(KindNull, "unsupported plist type %T", v)
	}
}

// toPlist converts a Value into the generic tree howett.net/plist encodes.
// Null has no plist representation; UIDs are kept only when allowUID is set.
func toPlist(v *Value, allowUID bool, depth int) (interface{}, error) {
	if depth > MaxPlistDepth {
		return nil, valueErrf(v.Kind(), "nesting deeper than %d", MaxPlistDepth)
	}
	switch v.Kind() {
	case KindNull:
		return nil, valueErrf(KindNull, "null cannot be written to a plist")
	case KindBool:
		return v.boolVal, nil
	case KindInt:
		return v.intVal, nil
	case KindUint:
		return v.uintVal, nil
	case KindFloat:
		return v.floatVal, nil
	case KindStr:
		return v.strVal, nil
	case KindBytes:
		return v.bytesVal, nil
	case KindTime:
		return v.timeVal, nil
	case KindUID:
		if !allowUID {
			return nil, valueErrf(KindUID, "unresolved reference to record %d", v.uintVal)
		}
		return plist.UID(v.uintVal), nil
	case KindList:
		items := make([]interface{}, 0, len(v.listVal))
		for _, elem := range v.listVal {
			item, err := toPlist(elem, allowUID, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case KindMap:
		obj := make(map[string]interface{}, len(v.mapVal))
		for _, e := range v.mapVal {
			item, err := toPlist(e.Value, allowUID, depth+1)
			if err != nil {
				return nil, err
			}
			obj[e.Key] = item
		}
		return obj, nil
	default:
		return nil, valueErrf(v.Kind(), "unsupported kind")
	}
}
