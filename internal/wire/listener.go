package wire

import (
	"net"

	"github.com/rs/zerolog"
)

// Listener accepts TCP connections and wraps each one in a Conn. It holds
// no notion of client identity or room membership — that belongs to the
// server's registry and dispatch layers, which consume Accept's results.
type Listener struct {
	ln       net.Listener
	maxFrame uint32
	log      zerolog.Logger
}

// Listen binds addr (e.g. ":7700") and returns a Listener ready to Accept.
func Listen(addr string, maxFrame uint32, log zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, maxFrame: maxFrame, log: log}, nil
}

// Accept blocks for the next inbound connection and returns it framed.
// Callers are expected to loop on Accept until it returns an error, at
// which point the listener has been closed.
func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return New(c, l.maxFrame, l.log), nil
}

// Addr reports the bound address, useful when port 0 was requested.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections; in-flight ones are unaffected.
func (l *Listener) Close() error { return l.ln.Close() }
