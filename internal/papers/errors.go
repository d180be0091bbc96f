package papers

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is a network or timeout failure, or an unexpected status code.
	ErrTransport = errors.New("transport error")
	// ErrParse means the markup did not have the expected shape.
	ErrParse = errors.New("parse error")
	// ErrNotFound is a well-formed but empty result.
	ErrNotFound = errors.New("not found")
	// ErrPathViolation means a requested path would escape the download root.
	ErrPathViolation = errors.New("path violation")
	// ErrRetrievalFailure is a partial or failed document transfer.
	ErrRetrievalFailure = errors.New("retrieval failure")
	// ErrInvalidRequest is an unknown source, board or level.
	ErrInvalidRequest = errors.New("invalid request")
)

type PathViolationError struct {
	Requested string
	Reason    string
}

func (e *PathViolationError) Error() string {
	return fmt.Sprintf("path violation: '%s' %s", e.Requested, e.Reason)
}

func (e *PathViolationError) Is(target error) bool {
	return target == ErrPathViolation
}

type RetrievalError struct {
	Url      string
	Filename string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve '%s' from %s: %s", e.Filename, e.Url, e.Err)
}

func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrievalFailure
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
