package domain

import (
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Party is the persisted membership record for a session, resolved by its
// short join code.
type Party struct {
	ID        uuid.UUID `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	OwnerID   uuid.UUID `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

type User struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

// Song is a single queue entry. SpotifyID is unique within a party's queue.
type Song struct {
	SpotifyID     string `json:"spotifyId"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	CoverPhotoURL string `json:"coverPhotoUrl"`
	Votes         int    `json:"votes"`
}

// PartyState is the reduced, authoritative playback state of one party.
// It is only ever produced by the reducer and replaced as a whole; the
// song queue slice must never be mutated in place once published.
type PartyState struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SongQueue       []Song `json:"songQueue"`
	CurrentSong     *Song  `json:"currentSong"`
	CurrentDuration int    `json:"currentDuration"`
	Playing         bool   `json:"playing"`
}

// Role of a caller with respect to a party.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleOwner
)
