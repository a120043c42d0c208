package materials

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidName indicates a material name that is empty or not path safe
	ErrInvalidName = errors.New("invalid material name")

	// ErrUnknownCategory indicates a category outside the fixed set
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnsupportedType indicates a content type the category does not accept
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrPayloadTooLarge indicates an upload above the configured ceiling
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNotFound indicates no item exists under the given category and name
	ErrNotFound = errors.New("material not found")

	// ErrAlreadyExists indicates the target name is already taken
	ErrAlreadyExists = errors.New("material already exists")

	// ErrStorageFailure indicates the underlying medium failed
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidCredentials indicates a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRole indicates an unknown role label
	ErrInvalidRole = errors.New("invalid role")
)

// IsValidationError reports whether err was raised by input validation,
// before any storage was touched.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrPayloadTooLarge)
}

// MaterialError represents an error related to a material operation
type MaterialError struct {
	Category Category
	Name     string
	Op       string
	Err      error
}

func (e *MaterialError) Error() string {
	return fmt.Sprintf("material operation %s failed for %s/%s: %v", e.Op, e.Category, e.Name, e.Err)
}

func (e *MaterialError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations. It matches
// ErrStorageFailure with errors.Is and still unwraps to the backend cause.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError wraps err unless it already is a domain sentinel that the
// caller is expected to branch on.
func NewStorageError(backend, key, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidName) || errors.Is(err, ErrPayloadTooLarge) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: backend, Key: key, Op: op, Err: err}
}
