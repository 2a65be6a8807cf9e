// Package server implements the server-side dispatch engine (C5): it
// decodes inbound frames, applies registry transitions, builds control
// responses, and fans audio out to room peers.
package server

import (
	"strings"

	"github.com/rustyguts/vroom/internal/registry"
)

// RenderListing encodes a registry snapshot into the LIST_ROOMS wire
// format: rooms separated by ';', each room starting
// with its id then ':', then each member id followed by ':', terminated
// by a literal '.'. An empty room appears as "<roomId>:.".
func RenderListing(snapshot []registry.RoomSnapshot) string {
	var b strings.Builder
	for i, rs := range snapshot {
		if i > 0 {
			b.WriteString(";")
		}
		b.WriteString(rs.RoomID)
		b.WriteString(":")
		for _, member := range rs.Members {
			b.WriteString(member)
			b.WriteString(":")
		}
		b.WriteString(".")
	}
	return b.String()
}
