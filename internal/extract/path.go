package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPathNotFound is returned when a path cannot be resolved against a tree
var ErrPathNotFound = errors.New("path not found")

// Segment is one step of a Path: either an index into a sequence or a key into a mapping
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is an ordered list of segments applied left to right
type Path []Segment

// ParsePath splits a "/"-delimited path. Segments that are non-negative
// integers are treated as sequence indices, everything else as mapping keys.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}

	parts := strings.Split(s, "/")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 && isDigits(part) {
			path = append(path, Segment{Index: n, IsIndex: true})
			continue
		}
		path = append(path, Segment{Key: part})
	}
	return path
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, "/")
}

// Extract resolves path against tree. The tree is expected to be the output
// of encoding/json decoding into any: map[string]any, []any and scalars.
func Extract(tree any, path Path) (any, error) {
	current := tree
	for i, seg := range path {
		if seg.IsIndex {
			list, ok := current.([]any)
			if !ok || seg.Index >= len(list) {
				return nil, fmt.Errorf("%w: segment %d %q", ErrPathNotFound, i, seg.String())
			}
			current = list[seg.Index]
			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: segment %d %q", ErrPathNotFound, i, seg.Key)
		}
		next, exists := obj[seg.Key]
		if !exists {
			return nil, fmt.Errorf("%w: segment %d %q", ErrPathNotFound, i, seg.Key)
		}
		current = next
	}
	return current, nil
}

// ExtractString parses s and resolves it against tree
func ExtractString(tree any, s string) (any, error) {
	return Extract(tree, ParsePath(s))
}
