package wire

import "errors"

// Error kinds surfaced by the frame transport.
var (
	ErrConnect        = errors.New("wire: connect failed")
	ErrNotConnected   = errors.New("wire: not connected")
	ErrBackpressure   = errors.New("wire: send queue saturated")
	ErrFrameTooLarge  = errors.New("wire: frame exceeds max size")
	ErrConnectionLost = errors.New("wire: connection lost")
)
