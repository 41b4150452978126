package apperr

import "errors"

type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindUserRejected        Kind = "user_rejected"
	KindPreconditionFailed  Kind = "precondition_failed"
	KindContractReverted    Kind = "contract_reverted"
	KindChainUnavailable    Kind = "chain_unavailable"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindNotFound            Kind = "not_found"
	KindUnauthenticated     Kind = "unauthenticated"
)

// Error carries a user-facing message next to the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message, falling back to a generic one for
// errors that never passed through this package.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return "unexpected error"
}
