package models

import (
	"fmt"
	"strings"
)

// EntityKind names a catalog entity type that can be merged.
type EntityKind string

const (
	EntityKindArtist EntityKind = "artist"
	EntityKindAlbum  EntityKind = "album"
	EntityKindSong   EntityKind = "song"
)

// EntityKinds lists every mergeable kind in a stable order.
var EntityKinds = []EntityKind{EntityKindArtist, EntityKindAlbum, EntityKindSong}

func (k EntityKind) String() string {
	return string(k)
}

func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindArtist, EntityKindAlbum, EntityKindSong:
		return true
	}
	return false
}

// ParseEntityKind accepts singular or plural, any case ("Artists" -> artist).
func ParseEntityKind(s string) (EntityKind, error) {
	kind := EntityKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return kind, nil
}

// EntityRef identifies one catalog record.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
