package nska

import (
	"fmt"
	"strings"
)

// canonicalRoot is the conventional $top name. Roots with this name are not
// wrapped in a {name: value} map.
const canonicalRoot = "root"

// flattener resolves one root. Its active set is the recursion guard: a UID
// is a member exactly while its expansion is on the frame stack.
type flattener struct {
	table  *RecordTable
	opts   Options
	active map[uint64]struct{}
	nodes  int
}

// frame is one pending container expansion.
type frame struct {
	src     *Value
	dst     *Value
	next    int
	key     string // key under which dst is stored in the parent map
	uid     uint64
	guarded bool
}

// Flatten resolves every reference reachable from start into an inline tree.
//
// start is normally the UID a $top entry points at; its record is guarded
// like any other dereferenced container. References back to a container that
// is still being expanded are dropped without error. Nulls become "" and the
// $class key is omitted.
func Flatten(table *RecordTable, start *Value, opts Options) (*Value, error) {
	f := &flattener{
		table:  table,
		opts:   opts,
		active: make(map[uint64]struct{}),
	}
	return f.run(start)
}

func (f *flattener) run(start *Value) (*Value, error) {
	root, ref := start, start
	if start.Kind() == KindUID {
		uid, rec, err := f.resolve(start)
		if err != nil {
			return nil, err
		}
		root, ref = rec, UID(uid)
	}
	if !root.IsContainer() {
		return emptyIfNull(root), nil
	}

	stack, err := f.push(make([]*frame, 0, 16), root, "", ref)
	if err != nil {
		return nil, err
	}

	for {
		top := stack[len(stack)-1]
		if top.next >= top.src.Len() {
			stack = stack[:len(stack)-1]
			if top.guarded {
				delete(f.active, top.uid)
			}
			if len(stack) == 0 {
				return top.dst, nil
			}
			stack[len(stack)-1].insert(top.key, top.dst)
			continue
		}

		key, val := top.entry()
		if top.src.kind == KindMap && key == keyClass {
			continue
		}

		switch val.Kind() {
		case KindUID:
			uid, child, err := f.resolve(val)
			if err != nil {
				return nil, err
			}
			if !child.IsContainer() {
				if err := f.emit(top, key, child); err != nil {
					return nil, err
				}
				continue
			}
			if _, cyclic := f.active[uid]; cyclic {
				continue
			}
			if stack, err = f.push(stack, child, key, UID(uid)); err != nil {
				return nil, err
			}
		case KindList, KindMap:
			// Inline containers cannot be the target of a back-reference.
			if stack, err = f.push(stack, val, key, nil); err != nil {
				return nil, err
			}
		default:
			if err := f.emit(top, key, val); err != nil {
				return nil, err
			}
		}
	}
}

// resolve dereferences a UID and applies common object conversion. Records
// that are themselves UIDs are followed; the returned uid names the record the
// chain ends at. A chain that revisits a record resolves to null.
func (f *flattener) resolve(ref *Value) (uint64, *Value, error) {
	uid := ref.uintVal
	var seen map[uint64]struct{}
	for {
		rec, err := f.table.Lookup(uid)
		if err != nil {
			return 0, nil, err
		}
		if rec.Kind() != KindUID {
			v, err := Convert(rec, f.table)
			return uid, v, err
		}
		if seen == nil {
			seen = make(map[uint64]struct{})
		}
		seen[uid] = struct{}{}
		uid = rec.uintVal
		if _, loop := seen[uid]; loop {
			return uid, Null(), nil
		}
	}
}

// push starts expanding src. When ref is a UID the expansion is guarded.
func (f *flattener) push(stack []*frame, src *Value, key string, ref *Value) ([]*frame, error) {
	if f.opts.MaxDepth > 0 && len(stack) >= f.opts.MaxDepth {
		return nil, &BudgetError{Limit: "depth", Value: f.opts.MaxDepth}
	}
	if err := f.count(); err != nil {
		return nil, err
	}
	fr := &frame{src: src, key: key}
	if src.kind == KindMap {
		fr.dst = &Value{kind: KindMap, mapVal: make([]MapEntry, 0, len(src.mapVal))}
	} else {
		fr.dst = &Value{kind: KindList, listVal: make([]*Value, 0, len(src.listVal))}
	}
	if ref.Kind() == KindUID {
		fr.uid, fr.guarded = ref.uintVal, true
		f.active[fr.uid] = struct{}{}
	}
	return append(stack, fr), nil
}

func (f *flattener) emit(fr *frame, key string, v *Value) error {
	if err := f.count(); err != nil {
		return err
	}
	fr.insert(key, emptyIfNull(v))
	return nil
}

func (f *flattener) count() error {
	f.nodes++
	if f.opts.MaxNodes > 0 && f.nodes > f.opts.MaxNodes {
		return &BudgetError{Limit: "node", Value: f.opts.MaxNodes}
	}
	return nil
}

// entry returns the next key/value pair and advances the cursor. List
// elements have an empty key.
func (fr *frame) entry() (string, *Value) {
	i := fr.next
	fr.next++
	if fr.src.kind == KindMap {
		e := fr.src.mapVal[i]
		return e.Key, e.Value
	}
	return "", fr.src.listVal[i]
}

// insert appends to dst. Source map keys are unique, so no lookup is needed.
func (fr *frame) insert(key string, v *Value) {
	if fr.dst.kind == KindMap {
		fr.dst.mapVal = append(fr.dst.mapVal, MapEntry{Key: key, Value: v})
		return
	}
	fr.dst.listVal = append(fr.dst.listVal, v)
}

// emptyIfNull replaces null ($null, NSNull) with the empty string.
func emptyIfNull(v *Value) *Value {
	if v.IsNull() {
		return Str("")
	}
	return v
}

// keyText renders a dictionary key as text. raw is the unresolved key, used
// to name container keys.
func keyText(k, raw *Value) string {
	switch k.Kind() {
	case KindNull:
		return ""
	case KindStr:
		return k.strVal
	case KindList, KindMap, KindUID:
		if raw.Kind() == KindUID {
			return fmt.Sprintf("%s#%d", k.Kind(), raw.uintVal)
		}
		return k.Kind().String()
	default:
		return ScalarText(k)
	}
}

// wrapRoot applies the $top naming rule: a container root named "root" is
// returned as-is, anything else becomes {name: value}.
func wrapRoot(name string, v *Value) *Value {
	if v.IsContainer() && strings.EqualFold(name, canonicalRoot) {
		return v
	}
	return Map(Entry(name, v))
}
