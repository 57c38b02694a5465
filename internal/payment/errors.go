package payment

import (
	"errors"
	"fmt"
)

// Sentinels matched through errors.Is by every typed error below.
var (
	ErrValidation   = errors.New("validation error")
	ErrProvider     = errors.New("provider error")
	ErrPrecondition = errors.New("precondition failed")
	ErrTransport    = errors.New("transport error")
)

// ValidationError is returned before any provider call when input is unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProviderError carries a rejection from the payment provider.
type ProviderError struct {
	Op         string
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: provider rejected request (%s): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: provider rejected request: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error         { return e.Err }
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// PreconditionError means the intent is not in a state that allows the operation.
type PreconditionError struct {
	IntentID  string
	RawStatus string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("intent %s (status %q): %s", e.IntentID, e.RawStatus, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// TransportError is a network or timeout failure; the provider may or may not
// have processed the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error         { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
