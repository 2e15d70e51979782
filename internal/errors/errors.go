package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Key material errors. Missing or unusable signing/encryption keys are
// fatal for the operation that needed them and are never retried.

type ErrKeyMaterial struct {
	Path   string
	Reason string
	Err    error
}

func (e *ErrKeyMaterial) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unusable key material %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("unusable key material %s: %v", e.Path, e.Err)
}

func (e *ErrKeyMaterial) Unwrap() error {
	return e.Err
}

// Authentication errors

// ErrAuthRequired signals that no usable credential exists and a full
// re-authorization flow is needed. It is distinct from transient HTTP
// failures: the sync loop must not busy-retry it away.
type ErrAuthRequired struct {
	Reason string
	Err    error
}

func (e *ErrAuthRequired) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization required: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authorization required: %s", e.Reason)
}

func (e *ErrAuthRequired) Unwrap() error {
	return e.Err
}

// API errors

type ErrAPIRequest struct {
	Status int
	Body   string
}

func (e *ErrAPIRequest) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.Status, e.Body)
}

// ErrProtocol covers malformed signed or encrypted payloads and response
// bodies that do not match the expected shape. One call fails; the caller
// decides whether to retry on the next cycle.
type ErrProtocol struct {
	Operation string
	Err       error
}

func (e *ErrProtocol) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Operation, e.Err)
}

func (e *ErrProtocol) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}
