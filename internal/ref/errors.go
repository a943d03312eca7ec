package ref

import (
	"errors"
	"fmt"
)

// ErrInvalidState matches every *InvalidStateError through errors.Is.
var ErrInvalidState = errors.New("invalid reference state")

// InvalidStateError reports a candidate value rejected by the active
// validator. Cause is nil when the validator simply returned false.
type InvalidStateError struct {
	Cause error
}

func (e *InvalidStateError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrInvalidState.Error()
	}
	return fmt.Sprintf("%s: %v", ErrInvalidState.Error(), e.Cause)
}

func (e *InvalidStateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// WatchError wraps a failure returned by a watch. The transition that
// triggered the watch has already been committed when this is returned.
type WatchError struct {
	Key any
	Err error
}

func (e *WatchError) Error() string {
	if e == nil {
		return "watch failed"
	}
	return fmt.Sprintf("watch %v: %v", e.Key, e.Err)
}

func (e *WatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRejected reports whether err left the reference unchanged because a
// candidate failed validation.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
