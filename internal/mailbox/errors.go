package mailbox

import (
	"errors"
	"fmt"
)

// ConnError indicates that the mailbox connection itself failed
// (dial, TLS, authentication, folder selection). It aborts the whole
// folder cycle; the next interval retries from scratch.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("mailbox connection error (%s): %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err (or any error in its chain) is a ConnError.
func IsConnError(err error) bool {
	var connErr *ConnError
	return errors.As(err, &connErr)
}

// FetchError indicates that a single message could not be fetched, for
// example because it was deleted between listing and fetching. It is local
// to that message; the rest of the cycle continues.
type FetchError struct {
	MessageID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %s: %v", e.MessageID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError indicates that delivering a reply failed. Ambiguous reports
// whether the server might have accepted the message anyway (timeout after
// the full body was written, with no server response seen). Ambiguous
// failures must never be treated as clean failures: the reply may be in
// the recipient's inbox already.
type SendError struct {
	Stage     string
	Ambiguous bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("ambiguous send failure at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("send failure at %s: %v", e.Stage, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsAmbiguousSend reports whether err is a SendError whose outcome on the
// server side is unknown.
func IsAmbiguousSend(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Ambiguous
}
