package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind tags the variants of the party mutation event union. The string
// values double as the wire-level event names pushed to subscribers.
type EventKind string

const (
	KindSongVoteUpdate       EventKind = "song_vote_update"
	KindSongQueueAddition    EventKind = "song_queue_addition"
	KindCurrentSongUpdate    EventKind = "current_song_update"
	KindPlaybackStatusUpdate EventKind = "playback_status_update"
	KindDurationUpdate       EventKind = "duration_update"
)

// InitialStateEvent is the distinguished first message every subscriber
// receives; it is not part of the mutation event union.
const InitialStateEvent = "initial-state"

// Event is the tagged union of party mutations. Each variant carries its own
// strongly typed payload; there is no runtime payload reinterpretation.
type Event interface {
	Kind() EventKind
}

// SongVoteUpdate replaces the vote count of the queue entry matching
// SpotifyID. Applying it to a queue without that entry is a no-op (a vote
// may race a removal).
type SongVoteUpdate struct {
	SpotifyID string `json:"spotifyId"`
	Votes     int    `json:"votes"`
}

// SongQueueAddition appends a song to the queue tail. Additions carrying a
// SpotifyID already present in the queue are ignored.
type SongQueueAddition struct {
	Song Song `json:"song"`
}

// CurrentSongUpdate replaces the currently playing song wholesale.
type CurrentSongUpdate struct {
	Song Song `json:"song"`
}

// PlaybackStatusUpdate replaces the playing flag.
type PlaybackStatusUpdate struct {
	Playing bool `json:"playing"`
}

// DurationUpdate replaces the playback position. The reducer does not clamp
// against track duration (unknown to it).
type DurationUpdate struct {
	Duration int `json:"duration"`
}

func (SongVoteUpdate) Kind() EventKind       { return KindSongVoteUpdate }
func (SongQueueAddition) Kind() EventKind    { return KindSongQueueAddition }
func (CurrentSongUpdate) Kind() EventKind    { return KindCurrentSongUpdate }
func (PlaybackStatusUpdate) Kind() EventKind { return KindPlaybackStatusUpdate }
func (DurationUpdate) Kind() EventKind       { return KindDurationUpdate }

// Envelope is the wire shape of a mutation event, both on the append log and
// on the push channel to subscribers.
type Envelope struct {
	Type    EventKind       `json:"type"`
	PartyID string          `json:"partyId"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent wraps an event into its envelope JSON.
func EncodeEvent(partyID string, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{Type: ev.Kind(), PartyID: partyID, Payload: payload})
}

// DecodeEvent parses an envelope payload into its typed variant. An unknown
// type or a payload that does not match the variant's shape is an error.
func DecodeEvent(kind EventKind, payload []byte) (Event, error) {
	switch kind {
	case KindSongVoteUpdate:
		var ev SongVoteUpdate
		if err := unmarshalPayload(kind, payload, &ev); err != nil {
			return nil, err
		}
		if ev.SpotifyID == "" {
			return nil, fmt.Errorf("%s: spotifyId is required", kind)
		}
		return ev, nil
	case KindSongQueueAddition:
		var ev SongQueueAddition
		if err := unmarshalPayload(kind, payload, &ev); err != nil {
			return nil, err
		}
		if ev.Song.SpotifyID == "" {
			return nil, fmt.Errorf("%s: song.spotifyId is required", kind)
		}
		return ev, nil
	case KindCurrentSongUpdate:
		var ev CurrentSongUpdate
		if err := unmarshalPayload(kind, payload, &ev); err != nil {
			return nil, err
		}
		if ev.Song.SpotifyID == "" {
			return nil, fmt.Errorf("%s: song.spotifyId is required", kind)
		}
		return ev, nil
	case KindPlaybackStatusUpdate:
		var ev PlaybackStatusUpdate
		if err := unmarshalPayload(kind, payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case KindDurationUpdate:
		var ev DurationUpdate
		if err := unmarshalPayload(kind, payload, &ev); err != nil {
			return nil, err
		}
		if ev.Duration < 0 {
			return nil, fmt.Errorf("%s: duration must be non-negative", kind)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}

// DecodeEnvelope parses a full envelope document into its typed event.
func DecodeEnvelope(data []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("malformed event envelope: %w", err)
	}
	ev, err := DecodeEvent(env.Type, env.Payload)
	if err != nil {
		return Envelope{}, nil, err
	}
	return env, ev, nil
}

func unmarshalPayload(kind EventKind, payload []byte, dst any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%s: missing payload", kind)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%s: malformed payload: %w", kind, err)
	}
	return nil
}
