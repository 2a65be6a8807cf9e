package wire

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// DefaultConnectTimeout bounds how long Dial waits for the TCP handshake.
const DefaultConnectTimeout = 5 * time.Second

// Dial resolves host:port and establishes a framed connection, returning
// the live Conn with its read and write loops already running.
func Dial(ctx context.Context, addr string, maxFrame uint32, log zerolog.Logger) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return New(c, maxFrame, log), nil
}
