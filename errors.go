package brainy

import (
	"errors"
	"fmt"
)

// Kind classifies a StoreError into one of the error kinds spec §7 names.
// Callers are expected to branch on Kind (via errors.Is against the
// matching sentinel below) rather than string-matching error messages.
type Kind string

const (
	KindInvalidInput       Kind = "InvalidInput"
	KindDimensionMismatch  Kind = "DimensionMismatch"
	KindInvalidVector      Kind = "InvalidVector"
	KindUnknownNounType    Kind = "UnknownNounType"
	KindUnknownVerbType    Kind = "UnknownVerbType"
	KindNotFound           Kind = "NotFound"
	KindReadOnly           Kind = "ReadOnly"
	KindWriteOnly          Kind = "WriteOnly"
	KindFrozen             Kind = "Frozen"
	KindRoleRequired       Kind = "RoleRequired"
	KindInvalidRole        Kind = "InvalidRole"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindEmbeddingFailed    Kind = "EmbeddingFailed"
	KindConflictingVersion Kind = "ConflictingVersion"
	KindInvalidConfig      Kind = "InvalidConfig"
)

// StoreError wraps an underlying error with the operation that failed, the
// error kind, and (when known) the offending entity/field/ID, following
// spec §7's "names the offending entity, field, or ID" requirement.
type StoreError struct {
	Op     string // operation name, e.g. "add", "search"
	Kind   Kind
	Entity string // offending entity/field/ID, when applicable
	Err    error
}

func (e *StoreError) Error() string {
	switch {
	case e.Entity != "" && e.Err != nil:
		return fmt.Sprintf("brainy: %s: %s (%s): %v", e.Op, e.Kind, e.Entity, e.Err)
	case e.Entity != "":
		return fmt.Sprintf("brainy: %s: %s (%s)", e.Op, e.Kind, e.Entity)
	case e.Err != nil:
		return fmt.Sprintf("brainy: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("brainy: %s: %s", e.Op, e.Kind)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) etc. work by comparing Kind.
func (e *StoreError) Is(target error) bool {
	te, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel errors, one per Kind, for errors.Is comparisons.
var (
	ErrInvalidInput       = &StoreError{Kind: KindInvalidInput}
	ErrDimensionMismatch  = &StoreError{Kind: KindDimensionMismatch}
	ErrInvalidVector      = &StoreError{Kind: KindInvalidVector}
	ErrUnknownNounType    = &StoreError{Kind: KindUnknownNounType}
	ErrUnknownVerbType    = &StoreError{Kind: KindUnknownVerbType}
	ErrNotFound           = &StoreError{Kind: KindNotFound}
	ErrReadOnly           = &StoreError{Kind: KindReadOnly}
	ErrWriteOnly          = &StoreError{Kind: KindWriteOnly}
	ErrFrozen             = &StoreError{Kind: KindFrozen}
	ErrRoleRequired       = &StoreError{Kind: KindRoleRequired}
	ErrInvalidRole        = &StoreError{Kind: KindInvalidRole}
	ErrStorageUnavailable = &StoreError{Kind: KindStorageUnavailable}
	ErrEmbeddingFailed    = &StoreError{Kind: KindEmbeddingFailed}
	ErrConflictingVersion = &StoreError{Kind: KindConflictingVersion}
	ErrInvalidConfig      = &StoreError{Kind: KindInvalidConfig}
)

// wrapErr builds a StoreError carrying op/kind/entity context around err.
func wrapErr(op string, kind Kind, entity string, err error) error {
	return &StoreError{Op: op, Kind: kind, Entity: entity, Err: err}
}

// asStoreError unwraps the nearest *StoreError in err's chain, if any.
func asStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
