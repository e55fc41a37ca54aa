package common

import (
	"errors"
	"fmt"
)

var (
	ErrConflict      = errors.New("number already reserved")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("not permitted")
	ErrNotConfigured = errors.New("guild is not linked to a league")
	ErrOutOfRange    = errors.New("number outside the guild's allowed range")
	ErrInvalidRange  = errors.New("invalid number range")
	ErrInvalidInput  = errors.New("invalid input")
)

// FetchError is a failed attempt to read an external roster. It is
// transient from the caller's point of view: the next pass may succeed.
type FetchError struct {
	LeagueID int64
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch roster for league %d: %s: %v", e.LeagueID, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch roster for league %d: %s", e.LeagueID, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageError wraps an unexpected database failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
