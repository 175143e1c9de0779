package batch

import (
	"github.com/teranos/legisync/errors"
)

// Kind is the type of a queued write
type Kind string

const (
	KindSet    Kind = "set"    // full replace, or merge with Merge/MergeFields
	KindUpdate Kind = "update" // partial merge, document must exist
	KindDelete Kind = "delete"
)

// Operation is one write against a document path
type Operation struct {
	Kind        Kind
	Path        Path
	Data        map[string]any
	Merge       bool
	MergeFields []string // dotted field paths; only these fields are written
}

// SetOption modifies a set operation
type SetOption func(*Operation)

// Merge merges data into the existing document instead of replacing it
func Merge() SetOption {
	return func(op *Operation) {
		op.Merge = true
	}
}

// MergeFields merges only the named (dotted) fields
func MergeFields(fields ...string) SetOption {
	return func(op *Operation) {
		op.Merge = true
		op.MergeFields = fields
	}
}

// SetOp builds a set operation, validating path at call time
func SetOp(path string, data map[string]any, opts ...SetOption) (Operation, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Operation{}, err
	}
	if data == nil {
		return Operation{}, errors.NewValidationError("set %s: nil data", path)
	}
	op := Operation{Kind: KindSet, Path: p, Data: data}
	for _, opt := range opts {
		opt(&op)
	}
	return op, nil
}

// UpdateOp builds an update operation. Keys of data may be dotted field paths.
func UpdateOp(path string, data map[string]any) (Operation, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Operation{}, err
	}
	if len(data) == 0 {
		return Operation{}, errors.NewValidationError("update %s: no fields", path)
	}
	return Operation{Kind: KindUpdate, Path: p, Data: data}, nil
}

// DeleteOp builds a delete operation
func DeleteOp(path string) (Operation, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Operation{}, err
	}
	return Operation{Kind: KindDelete, Path: p}, nil
}

// validate checks an operation assembled by hand
func (op Operation) validate() error {
	if op.Path.IsZero() {
		return errors.NewValidationError("%s operation without a path", op.Kind)
	}
	switch op.Kind {
	case KindSet:
		if op.Data == nil {
			return errors.NewValidationError("set %s: nil data", op.Path)
		}
	case KindUpdate:
		if len(op.Data) == 0 {
			return errors.NewValidationError("update %s: no fields", op.Path)
		}
	case KindDelete:
	default:
		return errors.NewValidationError("unknown operation kind %q", op.Kind)
	}
	return nil
}
