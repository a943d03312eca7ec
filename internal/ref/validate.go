package ref

import (
	"errors"
	"fmt"
)

// Validate runs fn against value. A nil fn accepts everything.
// Errors already of type *InvalidStateError are returned unchanged; any
// other error or panic becomes the cause of a new *InvalidStateError.
func Validate[T any](fn Validator[T], value T) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &InvalidStateError{Cause: panicCause(recovered)}
		}
	}()

	ok, validateErr := fn(value)
	if validateErr != nil {
		var stateErr *InvalidStateError
		if errors.As(validateErr, &stateErr) {
			return validateErr
		}
		return &InvalidStateError{Cause: validateErr}
	}
	if !ok {
		return &InvalidStateError{}
	}
	return nil
}

func panicCause(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("validator panicked: %w", err)
	}
	return fmt.Errorf("validator panicked: %v", recovered)
}
