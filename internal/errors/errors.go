// Package errors implements the fallback monitor's error-kind taxonomy.
// Rather than matching on strings, each kind is a comparable sentinel that
// callers check with errors.Is.
package errors

import "fmt"

// Kind identifies which class of failure occurred, independent of the
// specific error message. It maps directly onto the handling table.
type Kind string

const (
	MalformedRequest      Kind = "MalformedRequest"
	PayloadTooLarge       Kind = "PayloadTooLarge"
	AuthFailure           Kind = "AuthFailure"
	RateLimited           Kind = "RateLimited"
	PersistenceFailure    Kind = "PersistenceFailure"
	ServiceControlFailure Kind = "ServiceControlFailure"
	ApiError              Kind = "ApiError"
	EncoderChildFailure   Kind = "EncoderChildFailure"
	SignalTermination     Kind = "SignalTermination"
	ConfigurationInvalid  Kind = "ConfigurationInvalid"
)

// KindError wraps an underlying error with a Kind so handlers can branch on
// failure class without parsing messages.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }

// New wraps err with the given kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ke *KindError
	for err != nil {
		if k, ok := err.(*KindError); ok {
			ke = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ke != nil && ke.Kind == kind
}
