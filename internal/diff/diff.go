package diff

import (
	"sort"
	"strconv"
	"strings"
)

// ChangeType classifies a single field-level difference.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// Change is one field-level difference between two snapshots.
type Change struct {
	Field      string     `json:"field"`
	FieldPath  string     `json:"fieldPath"`
	OldValue   any        `json:"oldValue"`
	NewValue   any        `json:"newValue"`
	ChangeType ChangeType `json:"changeType"`
}

// IgnoredFields are bookkeeping keys the underlying document store maintains
// on every write. They would show up as a difference on otherwise identical
// documents, so they never produce a change record.
var IgnoredFields = map[string]struct{}{
	"_id":       {},
	"__v":       {},
	"updatedAt": {},
}

// Diff recursively compares two snapshot values and returns the ordered list
// of field-level changes between them. It is pure and total over the Value
// universe: no I/O, no panics, deterministic output order (map keys are
// traversed sorted, list elements positionally).
//
// List comparison is positional, not content-keyed: reordering an unchanged
// list registers as ADDED/REMOVED pairs at the shifted indices. Positions
// are meaningful for the array-of-struct fields this engine audits
// (container lists and the like), so positional semantics are kept.
func Diff(oldV, newV Value, pathPrefix string) []Change {
	switch {
	case oldV.IsAbsent() && newV.IsAbsent():
		return nil

	case oldV.IsAbsent():
		return []Change{{
			Field:      fieldName(pathPrefix, "document"),
			FieldPath:  pathPrefix,
			NewValue:   newV.Interface(),
			ChangeType: ChangeAdded,
		}}

	case newV.IsAbsent():
		return []Change{{
			Field:      fieldName(pathPrefix, "document"),
			FieldPath:  pathPrefix,
			OldValue:   oldV.Interface(),
			ChangeType: ChangeRemoved,
		}}

	case oldV.Kind() == KindList && newV.Kind() == KindList:
		return diffLists(oldV, newV, pathPrefix)

	case oldV.Kind() == KindMap && newV.Kind() == KindMap:
		return diffMaps(oldV, newV, pathPrefix)

	case oldV.isScalar() && newV.isScalar():
		if oldV.Equal(newV) {
			return nil
		}
		return []Change{modified(oldV, newV, pathPrefix, "value")}

	default:
		// Kind changed between composite and scalar, or list and map.
		// There is no structure to descend into, so report the whole
		// subtree as one modification.
		return []Change{modified(oldV, newV, pathPrefix, "value")}
	}
}

func diffLists(oldV, newV Value, pathPrefix string) []Change {
	var changes []Change
	n := len(oldV.list)
	if len(newV.list) > n {
		n = len(newV.list)
	}
	for i := 0; i < n; i++ {
		elemPath := joinPath(pathPrefix, strconv.Itoa(i))
		changes = append(changes, Diff(listAt(oldV, i), listAt(newV, i), elemPath)...)
	}
	return changes
}

func diffMaps(oldV, newV Value, pathPrefix string) []Change {
	var changes []Change
	for _, key := range unionKeys(oldV, newV) {
		if _, skip := IgnoredFields[key]; skip {
			continue
		}
		keyPath := joinPath(pathPrefix, key)
		oldItem, oldOK := oldV.m[key]
		newItem, newOK := newV.m[key]

		switch {
		case !oldOK:
			changes = append(changes, Diff(Absent(), newItem, keyPath)...)
		case !newOK:
			changes = append(changes, Diff(oldItem, Absent(), keyPath)...)
		case oldItem.isComposite() || newItem.isComposite():
			changes = append(changes, Diff(oldItem, newItem, keyPath)...)
		case !oldItem.Equal(newItem):
			changes = append(changes, modified(oldItem, newItem, keyPath, "value"))
		}
	}
	return changes
}

func modified(oldV, newV Value, path, fallback string) Change {
	return Change{
		Field:      fieldName(path, fallback),
		FieldPath:  path,
		OldValue:   oldV.Interface(),
		NewValue:   newV.Interface(),
		ChangeType: ChangeModified,
	}
}

func listAt(v Value, i int) Value {
	if i >= len(v.list) {
		return Absent()
	}
	return v.list[i]
}

func unionKeys(a, b Value) []string {
	keys := a.keys()
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	extra := false
	for _, k := range b.keys() {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
			extra = true
		}
	}
	if extra {
		sort.Strings(keys)
	}
	return keys
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// fieldName returns the final path segment, or the supplied fallback when
// the path is empty (a whole-document change).
func fieldName(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
