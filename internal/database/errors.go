package database

import (
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	default:
		return "permanent"
	}
}

// ClassifyError sorts postgres failures by whether retrying the unit of work can help.
// Anything that is not a recognised pq error, including domain errors returned from
// inside a transaction, is permanent.
func ClassifyError(err error) ErrorClass {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ErrorClassPermanent
	}

	switch pqErr.Code {
	case codeSerializationFailure:
		return ErrorClassSerialization
	case codeDeadlockDetected:
		return ErrorClassDeadlock
	case codeLockNotAvailable:
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	return ClassifyError(err) != ErrorClassPermanent
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}
