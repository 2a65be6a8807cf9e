package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunMetrics logs registry stats every interval until ctx is canceled.
// Quiet servers (no clients, only the main room) log nothing.
func RunMetrics(ctx context.Context, h *Hub, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := h.registry.Snapshot()
			connected := h.registry.CountConnected()
			if connected == 0 && len(snapshot) == 1 {
				continue
			}
			log.Info().
				Int("clients", connected).
				Int("rooms", len(snapshot)).
				Msg("metrics")
		}
	}
}
