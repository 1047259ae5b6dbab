package ads101x

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller passes a nil alert callback.
	ErrInvalidArgument = errors.New("ads101x: invalid argument")

	// ErrUnsupported is returned when the transport cannot attach or detach interrupts.
	ErrUnsupported = errors.New("ads101x: operation not supported by transport")
)

// TransportError is a failure reported by a transport backend. Code is the backend's own
// diagnostic code, or 0 if it has none.
type TransportError struct {
	Op   string
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ads101x: %s: %v (code %d)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("ads101x: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// wrapTransport makes sure every backend failure reaches the caller as a *TransportError.
func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
