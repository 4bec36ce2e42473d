package nska

import (
	"fmt"
	"io"
	"os"
)

// version of the deserializer output layout.
const version = "1.2"

// Version returns the deserializer version.
func Version() string {
	return version
}

// Options configures deserialization.
type Options struct {
	// MaxDepth bounds container nesting in the flattened output (0 = no limit).
	MaxDepth int
	// MaxNodes bounds the number of values emitted per root (0 = no limit).
	// Shared objects are expanded once per reference, so this also caps
	// blow-up from heavily shared graphs.
	MaxNodes int
}

// DefaultOptions returns the default limits.
func DefaultOptions() Options {
	return Options{
		MaxDepth: MaxPlistDepth,
		MaxNodes: 1 << 24,
	}
}

// DeserializeFile reads and deserializes the archive at path.
func DeserializeFile(path string, opts Options) (*Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Deserialize(data, opts)
}

// DeserializeReader reads r to the end and deserializes it.
func DeserializeReader(r io.Reader, opts Options) (*Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Deserialize(data, opts)
}

// Deserialize decodes an NSKeyedArchiver archive into a plain tree.
//
// A single root named "root" yields that root's map or list. A single root
// with another name yields {name: value}. Several roots yield a list of
// {name: value} maps in declared order, "root" included. Errors from the
// plist codec are returned wrapped in *FormatError; a valid plist that is
// not a keyed archive yields *NotArchiveError.
func Deserialize(data []byte, opts Options) (*Value, error) {
	rep, err := Repair(data)
	if err != nil {
		return nil, err
	}
	names, err := LocateRoots(rep.Meta)
	if err != nil {
		return nil, err
	}
	table, err := LoadRecordTable(rep.Stream)
	if err != nil {
		return nil, err
	}

	if len(names) == 1 {
		v, err := flattenRoot(table, names[0], opts)
		if err != nil {
			return nil, err
		}
		return wrapRoot(names[0], v), nil
	}
	out := List()
	for _, name := range names {
		v, err := flattenRoot(table, name, opts)
		if err != nil {
			return nil, err
		}
		out.Append(Map(Entry(name, v)))
	}
	return out, nil
}

// flattenRoot flattens one $top entry with a fresh recursion guard.
func flattenRoot(table *RecordTable, name string, opts Options) (*Value, error) {
	start := table.Top().Get(name)
	if start == nil {
		return nil, &NotArchiveError{Missing: fmt.Sprintf("%s.%s", keyTop, name)}
	}
	v, err := Flatten(table, start, opts)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", keyTop, name, err)
	}
	return v, nil
}
