// Package codequeryerr defines the closed error taxonomy shared by every
// component of the engine, in the sentinel + fmt.Errorf("...: %w", Err)
// idiom used by the teacher's fsutil.ErrNotFound.
package codequeryerr

import "errors"

var (
	// ErrValidation covers invalid dataset names, unknown config keys, bad
	// globs, out-of-range numeric config, and invalid VCS refs.
	ErrValidation = errors.New("validation_error")

	// ErrNotFound covers missing datasets, file documentation, or queued paths.
	ErrNotFound = errors.New("not_found")

	// ErrConflict covers a dataset that already exists, or one with children
	// when force=false.
	ErrConflict = errors.New("conflict")

	// ErrStorage covers pool timeouts, transaction failures, and migration
	// failures.
	ErrStorage = errors.New("storage_error")

	// ErrQueryTimeout is returned when the backend's interrupt mechanism fires.
	ErrQueryTimeout = errors.New("query_timeout")

	// ErrQueryTooComplex is returned by the complexity analyzer's rejection path.
	ErrQueryTooComplex = errors.New("query_too_complex")

	// ErrUnsupportedOperation covers bidirectional sync and unknown hook types.
	ErrUnsupportedOperation = errors.New("unsupported_operation")

	// ErrIO covers file read/write failures in analyzers or config.
	ErrIO = errors.New("io_error")

	// ErrVCS covers underlying version-control command failures.
	ErrVCS = errors.New("vcs_error")

	// ErrCancelled is returned when cooperative cancellation is observed.
	ErrCancelled = errors.New("cancelled")
)
