package batch

import (
	"strings"

	"github.com/teranos/legisync/errors"
)

// Path is a validated document path: collection/doc[/collection/doc...]
type Path struct {
	segments []string
}

// ParsePath splits a /-delimited document path. The segment count must be
// even and no segment may be empty.
func ParsePath(raw string) (Path, error) {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return Path{}, errors.NewValidationError("empty document path")
	}

	segments := strings.Split(trimmed, "/")
	if len(segments)%2 != 0 {
		return Path{}, errors.NewValidationError("document path %q has %d segments, want an even count (collection/doc pairs)", raw, len(segments))
	}
	for i, s := range segments {
		if strings.TrimSpace(s) == "" {
			return Path{}, errors.NewValidationError("document path %q has an empty segment at position %d", raw, i)
		}
	}

	return Path{segments: segments}, nil
}

// MustPath is ParsePath for paths known at compile time
func MustPath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// Segments returns a copy of the path segments
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Collection returns the path of the collection holding the document
func (p Path) Collection() string {
	return strings.Join(p.segments[:len(p.segments)-1], "/")
}

// DocID returns the last segment
func (p Path) DocID() string {
	return p.segments[len(p.segments)-1]
}

// IsZero reports whether p was never parsed
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}
