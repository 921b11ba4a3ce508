// Package fieldpath resolves dotted field paths (with numeric array indices
// and "*" wildcards) against the generic JSON tree produced by marshaling a
// canonical event, the same way the condition DSL and the redact action both
// need to reach into arbitrary nested fields without each owning a private
// notion of the event's shape.
package fieldpath

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToTree marshals any JSON-taggable value (an *event.Event, typically) into
// the generic map/slice/scalar tree the Get/Walk functions operate over.
func ToTree(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// FromTree unmarshals a tree produced by ToTree (possibly mutated by Walk)
// back into dst.
func FromTree(tree any, dst any) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Segments splits a dotted path into its parts.
func Segments(path string) []string {
	return strings.Split(path, ".")
}

// Get navigates a path with no wildcard support, returning the leaf value if
// every segment resolves; used by the condition DSL, which only ever
// addresses a single field.
func Get(tree any, path string) (any, bool) {
	current := tree
	for _, seg := range Segments(path) {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Walk applies fn to every leaf reached by path, where any segment may be
// "*" to mean "every key of this object" or "every element of this array".
// It mutates the tree in place and reports whether anything changed.
func Walk(tree any, path string, fn func(leaf any) (any, bool)) bool {
	return walkSegments(tree, Segments(path), fn)
}

func walkSegments(node any, segments []string, fn func(any) (any, bool)) bool {
	if len(segments) == 0 {
		return false
	}
	seg := segments[0]
	rest := segments[1:]

	switch v := node.(type) {
	case map[string]any:
		if seg == "*" {
			changed := false
			for k, child := range v {
				if applyOrRecurse(v, k, child, rest, fn) {
					changed = true
				}
			}
			return changed
		}
		child, ok := v[seg]
		if !ok {
			return false
		}
		return applyOrRecurse(v, seg, child, rest, fn)
	case []any:
		if seg == "*" {
			changed := false
			for i, child := range v {
				if applyOrRecurseSlice(v, i, child, rest, fn) {
					changed = true
				}
			}
			return changed
		}
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return false
		}
		return applyOrRecurseSlice(v, idx, v[idx], rest, fn)
	default:
		return false
	}
}

func applyOrRecurse(parent map[string]any, key string, child any, rest []string, fn func(any) (any, bool)) bool {
	if len(rest) == 0 {
		newVal, changed := fn(child)
		if changed {
			parent[key] = newVal
		}
		return changed
	}
	return walkSegments(child, rest, fn)
}

func applyOrRecurseSlice(parent []any, idx int, child any, rest []string, fn func(any) (any, bool)) bool {
	if len(rest) == 0 {
		newVal, changed := fn(child)
		if changed {
			parent[idx] = newVal
		}
		return changed
	}
	return walkSegments(child, rest, fn)
}

// WalkAllStrings recurses through every object/array in tree and applies fn
// to every string leaf found anywhere, regardless of its path; used by
// whole-event redaction, which has no field-path list to target.
func WalkAllStrings(tree any, fn func(s string) (string, bool)) bool {
	switch v := tree.(type) {
	case map[string]any:
		changed := false
		for k, child := range v {
			if s, ok := child.(string); ok {
				if newS, did := fn(s); did {
					v[k] = newS
					changed = true
				}
				continue
			}
			if WalkAllStrings(child, fn) {
				changed = true
			}
		}
		return changed
	case []any:
		changed := false
		for i, child := range v {
			if s, ok := child.(string); ok {
				if newS, did := fn(s); did {
					v[i] = newS
					changed = true
				}
				continue
			}
			if WalkAllStrings(child, fn) {
				changed = true
			}
		}
		return changed
	default:
		return false
	}
}
