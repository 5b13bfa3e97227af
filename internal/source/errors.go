package source

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for capabilities a source does not have.
var ErrUnsupported = errors.New("not supported by this source")

// FetchError is a network, HTTP or decode failure while talking to the
// catalog. Message is meant for the user.
type FetchError struct {
	Op      string // "page", "tags" or "item"
	Word    string
	Page    int
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "failed to load"
	}
	switch {
	case e.Op == "page" && e.Status != 0:
		return fmt.Sprintf("fetching %q page %d: HTTP %d: %s", e.Word, e.Page, e.Status, msg)
	case e.Op == "page":
		return fmt.Sprintf("fetching %q page %d: %s", e.Word, e.Page, msg)
	case e.Status != 0:
		return fmt.Sprintf("fetching %s: HTTP %d: %s", e.Op, e.Status, msg)
	default:
		return fmt.Sprintf("fetching %s: %s", e.Op, msg)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage is the short text shown next to a retry action.
func (e *FetchError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Failed to load"
}

// AsFetchError unwraps err to a *FetchError, wrapping foreign errors so
// callers always get a message.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Op: "request", Err: err}
}
