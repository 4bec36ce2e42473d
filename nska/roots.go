package nska

import (
	"sort"
	"strings"
)

// LocateRoots returns the names of the archive's top-level objects.
//
// Names follow meta.Order when it is available; names the order does not
// cover come after it, the canonical "root" first and the rest sorted.
// An archive may declare any number of roots, including none.
func LocateRoots(meta Metadata) ([]string, error) {
	if meta.Top == nil {
		return nil, &NotArchiveError{Missing: keyTop}
	}
	entries, err := meta.Top.AsMap()
	if err != nil {
		return nil, &NotArchiveError{Missing: keyTop}
	}

	declared := make(map[string]bool, len(entries))
	for _, e := range entries {
		declared[e.Key] = true
	}

	names := make([]string, 0, len(entries))
	for _, name := range meta.Order {
		if declared[name] {
			names = append(names, name)
			delete(declared, name)
		}
	}

	rest := make([]string, 0, len(declared))
	for name := range declared {
		rest = append(rest, name)
	}
	sort.Slice(rest, func(i, j int) bool {
		ci, cj := strings.EqualFold(rest[i], canonicalRoot), strings.EqualFold(rest[j], canonicalRoot)
		if ci != cj {
			return ci
		}
		return rest[i] < rest[j]
	})
	return append(names, rest...), nil
}
