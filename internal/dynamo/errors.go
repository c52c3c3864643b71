package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation and training operations.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched vector dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrValueReference indicates an unknown or malformed value reference list.
	ErrValueReference = errors.New("dynamo: malformed value references")

	// ErrTimeSpan indicates an empty or reversed time span or step size.
	ErrTimeSpan = errors.New("dynamo: invalid time span")

	// ErrOutOfDomain indicates a timestamp outside a trajectory's time domain.
	ErrOutOfDomain = errors.New("dynamo: timestamp outside trajectory domain")

	// ErrUnsorted indicates trajectory timestamps that are not strictly increasing.
	ErrUnsorted = errors.New("dynamo: timestamps not strictly increasing")

	// ErrInstanceInUse indicates a simulator instance already owned by another model.
	ErrInstanceInUse = errors.New("dynamo: simulator instance already in use")

	// ErrStepFailed indicates the simulator could not complete a step.
	ErrStepFailed = errors.New("dynamo: simulator step failed")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrLifecycle indicates a simulator call in the wrong lifecycle phase.
	ErrLifecycle = errors.New("dynamo: simulator call outside valid lifecycle phase")

	// ErrNonFiniteLoss indicates a loss evaluation that produced NaN or Inf.
	ErrNonFiniteLoss = errors.New("dynamo: loss is NaN or Inf")

	// ErrInvalidConfig indicates an experiment setting that cannot be run.
	ErrInvalidConfig = errors.New("dynamo: invalid experiment configuration")
)

// ConfigurationError reports a setup problem detected before or at the
// boundary of simulation work: bad dimensions, bad timestamps, malformed
// value reference arrays.
type ConfigurationError struct {
	Op      string
	Wrapped error
}

// Configf builds a ConfigurationError for op wrapping sentinel with a
// formatted detail message.
func Configf(op string, sentinel error, format string, args ...any) error {
	return &ConfigurationError{
		Op:      op,
		Wrapped: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return e.Wrapped.Error()
	}
	return e.Op + ": " + e.Wrapped.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Wrapped
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Wrapped.Error())
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// CallbackError wraps a failure raised by a training callback.
type CallbackError struct {
	Iteration int
	Wrapped   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback at iteration %d: %s", e.Iteration, e.Wrapped.Error())
}

func (e *CallbackError) Unwrap() error {
	return e.Wrapped
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsSimulation reports whether err is or wraps a SimulationError.
func IsSimulation(err error) bool {
	var se *SimulationError
	return errors.As(err, &se)
}
