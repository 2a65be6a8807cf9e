package client

import "strings"

// Room is one parsed entry from a LIST_ROOMS reply.
type Room struct {
	ID      string
	Members []string
}

// ParseListing decodes the wire grammar
// "<roomId>:<user1>:<user2>:….;…" into structured Rooms, for the REPL to
// render. Malformed entries (missing the trailing '.') are skipped
// rather than failing the whole parse, since the listing as a whole is
// always a SUCCESS response.
func ParseListing(listing string) []Room {
	if listing == "" {
		return nil
	}
	entries := strings.Split(listing, ";")
	rooms := make([]Room, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSuffix(entry, ".")
		parts := strings.Split(entry, ":")
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		room := Room{ID: parts[0]}
		for _, member := range parts[1:] {
			if member != "" {
				room.Members = append(room.Members, member)
			}
		}
		rooms = append(rooms, room)
	}
	return rooms
}
