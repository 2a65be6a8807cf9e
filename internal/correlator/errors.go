package correlator

import "errors"

var (
	// ErrTimeout is returned when a request's waiter expires before a
	// matching response arrives.
	ErrTimeout = errors.New("correlator: timeout")

	// ErrConnectionLost is returned to a waiter when the connection it
	// depends on closes before a response arrives, and to any caller that
	// issues a request after Shutdown.
	ErrConnectionLost = errors.New("correlator: connection lost")
)
