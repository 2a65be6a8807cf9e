package protocol

import "errors"

// ErrDecode marks a frame payload that matches no known variant. It is
// non-fatal to the connection; the caller logs and drops the frame.
var ErrDecode = errors.New("protocol: decode error")
