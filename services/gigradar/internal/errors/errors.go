package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeCredentialsMissing    ErrorType = "CREDENTIALS_MISSING"
	ErrTypeAuthExpired           ErrorType = "AUTH_EXPIRED"
	ErrTypeTransport             ErrorType = "TRANSPORT"
	ErrTypeNotFound              ErrorType = "NOT_FOUND"
	ErrTypeParse                 ErrorType = "PARSE"
	ErrTypeClassifierUnavailable ErrorType = "CLASSIFIER_UNAVAILABLE"
	ErrTypePersistenceConflict   ErrorType = "PERSISTENCE_CONFLICT"
	ErrTypeInvalidInput          ErrorType = "INVALID_INPUT"
	ErrTypeInternal              ErrorType = "INTERNAL"
)

type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// Is reports whether any DomainError in err's chain has the given type.
func Is(err error, errType ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// TypeOf returns the outermost DomainError type, or "" for foreign errors.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ""
}

func CredentialsMissing(message string, err error) *DomainError {
	return New(ErrTypeCredentialsMissing, message, err)
}

func AuthExpired(message string, err error) *DomainError {
	return New(ErrTypeAuthExpired, message, err)
}

func Transport(message string, err error) *DomainError {
	return New(ErrTypeTransport, message, err)
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err)
}

func Parse(message string, err error) *DomainError {
	return New(ErrTypeParse, message, err)
}

func ClassifierUnavailable(message string, err error) *DomainError {
	return New(ErrTypeClassifierUnavailable, message, err)
}

func PersistenceConflict(message string, err error) *DomainError {
	return New(ErrTypePersistenceConflict, message, err)
}

func InvalidInput(message string, err error) *DomainError {
	return New(ErrTypeInvalidInput, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}
