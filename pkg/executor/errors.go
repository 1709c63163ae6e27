package executor

import "fmt"

// EngineUnavailableError indicates that the container engine cannot be
// invoked on this host. Callers attempt host fallback when the runner
// supports it; otherwise this is fatal.
type EngineUnavailableError struct {
	Engine string
	Cause  error
}

func (e *EngineUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s is not available: %v", e.Engine, e.Cause)
	}
	return fmt.Sprintf("%s is not available", e.Engine)
}

func (e *EngineUnavailableError) Unwrap() error {
	return e.Cause
}

// NewEngineUnavailableError creates a new engine-unavailable error.
func NewEngineUnavailableError(engine string, cause error) *EngineUnavailableError {
	return &EngineUnavailableError{Engine: engine, Cause: cause}
}

// SpawnError indicates that the engine child process could not be started.
type SpawnError struct {
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn container engine: %v", e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// WaitError indicates that waiting on the engine child process failed for a
// reason other than a nonzero exit.
type WaitError struct {
	Cause error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("failed to wait for container engine: %v", e.Cause)
}

func (e *WaitError) Unwrap() error {
	return e.Cause
}

// FallbackUnsupportedError indicates that the runner does not permit direct
// host execution.
type FallbackUnsupportedError struct {
	Command string
}

func (e *FallbackUnsupportedError) Error() string {
	return fmt.Sprintf("fallback execution is not supported for %s", e.Command)
}
