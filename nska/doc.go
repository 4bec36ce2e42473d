// Package nska decodes Apple NSKeyedArchiver archives into plain nested values.
//
// An NSKeyedArchiver archive is a property list holding a flat table of
// records ($objects) connected by integer back-references (UIDs), plus a
// $top index naming the root object(s). This package resolves those
// references into an ordinary tree of maps, lists and scalars that can be
// written back out as a standard property list or as JSON.
//
// # Pipeline
//
//	raw bytes
//	  -> Repair        (XML quirks, embedded blobs, CF$UID fields, binary re-encode)
//	  -> RecordTable   ($objects as typed Values)
//	  -> LocateRoots   ($top names, declared order)
//	  -> Flatten       (UID resolution, cycle breaking)
//	  -> Normalize     (JSON-safe scalars, only for the JSON writer)
//
// # Data Model
//
// Scalars: null, bool, int, uint, float, str, bytes, time
// References: uid
// Containers: list, map (ordered entries)
//
// Flattened output never contains uid values, null values or the $class
// key. Nulls become the empty string.
//
// # Cycles
//
// A reference back to an object that is still being expanded is dropped
// from its parent. Two non-cyclic references to the same object are
// expanded independently.
//
// # Example
//
//	v, err := nska.DeserializeFile("Sessions.plist", nska.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	return nska.WriteJSON(v, "Sessions.json")
package nska
