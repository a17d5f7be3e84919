// Package ports defines the interfaces the core depends on and the
// error taxonomy shared across the export pipeline.
package ports

import (
	"errors"
	"fmt"
)

// ErrValidation indicates a request was rejected before any persistent
// state was created.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the offending field and reason for a rejected
// export request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SourceUnavailableError marks a missing or undecodable audio source.
// It is scoped to one track: the orchestrator logs it and continues.
type SourceUnavailableError struct {
	Ref string
	Err error
}

func (e SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Ref, e.Err)
}

func (e SourceUnavailableError) Unwrap() error { return e.Err }

// EncodeError marks a codec or bitrate failure during encoding, scoped
// to one track or the master bus.
type EncodeError struct {
	Format string
	Err    error
}

func (e EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e EncodeError) Unwrap() error { return e.Err }

// StorageError marks an upload/download/delete failure. Fatal to the
// render step it occurs in; fatal to the whole job only at bundle stage.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }
