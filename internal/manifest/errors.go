package manifest

import "errors"

// Sentinel errors for manifest loading and validation.
var (
	// ErrNoManifest indicates no pulsar.toml was found at the build root.
	ErrNoManifest = errors.New("pulsar.toml not found at build root")
	// ErrDuplicateID indicates two or more targets share the same ID.
	ErrDuplicateID = errors.New("duplicate target ID")
	// ErrUnknownDep indicates a target depends on a target ID that does not exist.
	ErrUnknownDep = errors.New("target depends on unknown target ID")
	// ErrUnknownRoot indicates build.roots names a target ID that does not exist.
	ErrUnknownRoot = errors.New("root selection names unknown target ID")
	// ErrMissingField indicates a required field (e.g. id, kind) is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrDependencyCycle indicates a circular dependency among targets.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// TargetError records a validation problem with target context.
type TargetError struct {
	TargetID string
	Field    string
	Err      error
}

// Error returns a human-readable string including target context.
func (e *TargetError) Error() string {
	if e.TargetID != "" {
		return "target " + e.TargetID + ": " + e.Err.Error()
	}
	return "pulsar.toml: " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *TargetError) Unwrap() error {
	return e.Err
}
