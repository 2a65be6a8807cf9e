package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyguts/vroom/internal/registry"
	"github.com/rustyguts/vroom/internal/wire"
)

// Hub owns the room registry, the live session table, and the accept
// loop. client_id is assigned via uuid.NewString() at accept time so
// ids stay unguessable if the protocol ever grows trust in them.
type Hub struct {
	log      zerolog.Logger
	registry *registry.Registry

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHub returns a Hub with an empty registry (main channel only).
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:      log,
		registry: registry.New(),
		sessions: make(map[string]*session),
	}
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// fails, spawning one goroutine per connection under an errgroup so the
// whole server shuts down together on any fatal error (grounded in the
// pack's x/sync/errgroup usage for goroutine-group lifecycle).
func (h *Hub) Serve(ctx context.Context, ln *wire.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			clientID := uuid.NewString()
			g.Go(func() error {
				h.handleConn(ctx, clientID, conn)
				return nil
			})
		}
	})

	return g.Wait()
}

func (h *Hub) addSession(s *session) {
	h.mu.Lock()
	h.sessions[s.clientID] = s
	h.mu.Unlock()
}

func (h *Hub) removeSession(clientID string) {
	h.mu.Lock()
	delete(h.sessions, clientID)
	h.mu.Unlock()
}

func (h *Hub) sessionFor(clientID string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[clientID]
	return s, ok
}
