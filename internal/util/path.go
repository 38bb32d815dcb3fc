package util

import "strings"

// LookupPath walks a nested map along a dotted path ("a.b.c") and returns the
// value found there. The second return is false when any segment is missing or
// an intermediate value is not a map.
func LookupPath(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// SetPath writes a value into a nested map at the dotted path, auto-creating
// intermediate maps. An existing non-map intermediate value is replaced by a
// fresh map so the write always succeeds.
func SetPath(m map[string]any, path string, value any) {
	if path == "" {
		return
	}

	parts := strings.Split(path, ".")
	node := m
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}

	node[parts[len(parts)-1]] = value
}

// RefPath extracts the reference path from a "${...}" template value. The
// second return is false when the value is not a string of that form.
func RefPath(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}

	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}

	return s[2 : len(s)-1], true
}
