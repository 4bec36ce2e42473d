package nska

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// appleEpoch is the reference date of NSDate.NS.time.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// maxDateSeconds keeps NSDate offsets inside the range time.Time can format.
const maxDateSeconds = 1e12

// Convert unwraps well-known Foundation wrapper classes into primitive values.
//
// Collections keep their element references as UIDs; the flattener resolves
// them under cycle protection. Records of unknown classes are returned as-is.
func Convert(rec *Value, table *RecordTable) (*Value, error) {
	return convert(rec, table, 0)
}

// maxWrapperChain bounds wrapper records whose fields point at further
// wrappers (NSString.NS.string -> NSString ...).
const maxWrapperChain = 32

func convert(rec *Value, table *RecordTable, depth int) (*Value, error) {
	if depth > maxWrapperChain {
		return nil, &BudgetError{Limit: "wrapper chain", Value: maxWrapperChain}
	}
	switch rec.Kind() {
	case KindStr:
		if rec.strVal == nullRecord {
			return Null(), nil
		}
		return rec, nil
	case KindUID:
		return resolveScalar(rec, table, depth)
	case KindMap:
	default:
		return rec, nil
	}

	name, err := className(rec, table)
	if err != nil || name == "" {
		return rec, err
	}

	switch name {
	case "NSDictionary", "NSMutableDictionary":
		return convertDictionary(rec, table, depth)
	case "NSArray", "NSMutableArray", "NSSet", "NSMutableSet", "NSOrderedSet", "NSMutableOrderedSet":
		objects := rec.Get("NS.objects")
		if objects.Kind() != KindList {
			return List(), nil
		}
		return List(append([]*Value(nil), objects.listVal...)...), nil
	case "NSString", "NSMutableString":
		return convertString(rec, table, depth)
	case "NSAttributedString", "NSMutableAttributedString":
		s, err := resolveScalar(rec.Get("NSString"), table, depth)
		if err != nil || s == nil {
			return Str(""), err
		}
		return s, nil
	case "NSData", "NSMutableData":
		data, err := resolveScalar(rec.Get("NS.data"), table, depth)
		if err != nil || data == nil {
			return rec, err
		}
		return data, nil
	case "NSDate":
		return convertDate(rec, table, depth)
	case "NSUUID":
		return convertUUID(rec, table, depth)
	case "NSURL":
		return convertURL(rec, table, depth)
	case "NSNull":
		return Null(), nil
	}
	return rec, nil
}

// className returns the $classname of the class descriptor a record points to.
func className(rec *Value, table *RecordTable) (string, error) {
	ref := rec.Get(keyClass)
	if ref.Kind() != KindUID {
		return "", nil
	}
	desc, err := table.Lookup(ref.uintVal)
	if err != nil {
		return "", err
	}
	if name := desc.Get(keyClassName); name.Kind() == KindStr {
		return name.strVal, nil
	}
	return "", nil
}

// resolveScalar follows a single reference and applies Convert. Inline values
// are returned unchanged; nil stays nil.
func resolveScalar(v *Value, table *RecordTable, depth int) (*Value, error) {
	if v.Kind() != KindUID {
		return v, nil
	}
	rec, err := table.Lookup(v.uintVal)
	if err != nil {
		return nil, err
	}
	return convert(rec, table, depth+1)
}

func convertDictionary(rec *Value, table *RecordTable, depth int) (*Value, error) {
	keys, objects := rec.Get("NS.keys"), rec.Get("NS.objects")
	if keys.Kind() != KindList || objects.Kind() != KindList {
		return Map(), nil
	}
	n := min(len(keys.listVal), len(objects.listVal))
	out := Map()
	for i := 0; i < n; i++ {
		k, err := resolveScalar(keys.listVal[i], table, depth)
		if err != nil {
			return nil, fmt.Errorf("NS.keys[%d]: %w", i, err)
		}
		out.Set(keyText(k, keys.listVal[i]), objects.listVal[i])
	}
	return out, nil
}

func convertString(rec *Value, table *RecordTable, depth int) (*Value, error) {
	if s := rec.Get("NS.string"); s != nil {
		v, err := resolveScalar(s, table, depth)
		if err != nil || v == nil {
			return Str(""), err
		}
		return v, nil
	}
	if b := rec.Get("NS.bytes"); b != nil {
		v, err := resolveScalar(b, table, depth)
		if err != nil {
			return nil, err
		}
		if raw, err := v.AsBytes(); err == nil {
			return Str(string(raw)), nil
		}
		return v, nil
	}
	return Str(""), nil
}

func convertDate(rec *Value, table *RecordTable, depth int) (*Value, error) {
	v, err := resolveScalar(rec.Get("NS.time"), table, depth)
	if err != nil {
		return nil, err
	}
	var secs float64
	switch v.Kind() {
	case KindFloat:
		secs = v.floatVal
	case KindInt:
		secs = float64(v.intVal)
	case KindUint:
		secs = float64(v.uintVal)
	default:
		return rec, nil
	}
	if math.IsNaN(secs) || math.Abs(secs) > maxDateSeconds {
		return nil, &LiteralError{Literal: strconv.FormatFloat(secs, 'g', -1, 64), Err: fmt.Errorf("NSDate out of range")}
	}
	whole, frac := math.Modf(secs)
	return Time(time.Unix(appleEpoch.Unix()+int64(whole), int64(frac*1e9)).UTC()), nil
}

func convertUUID(rec *Value, table *RecordTable, depth int) (*Value, error) {
	v, err := resolveScalar(rec.Get("NS.uuidbytes"), table, depth)
	if err != nil {
		return nil, err
	}
	raw, err := v.AsBytes()
	if err != nil {
		return rec, nil
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return Bytes(raw), nil
	}
	return Str(strings.ToUpper(id.String())), nil
}

// convertURL joins an NSURL with its chain of NS.base URLs, outermost base
// first.
func convertURL(rec *Value, table *RecordTable, depth int) (*Value, error) {
	var parts []string
	seen := make(map[uint64]bool)
	for cur := rec; ; {
		rel, err := resolveScalar(cur.Get("NS.relative"), table, depth)
		if err != nil {
			return nil, err
		}
		if rel.Kind() == KindStr {
			parts = append(parts, rel.strVal)
		}
		base := cur.Get("NS.base")
		if base.Kind() != KindUID || seen[base.uintVal] {
			break
		}
		seen[base.uintVal] = true
		next, err := table.Lookup(base.uintVal)
		if err != nil {
			return nil, err
		}
		if next.Kind() != KindMap {
			break
		}
		cur = next
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString(parts[i])
	}
	return Str(sb.String()), nil
}
