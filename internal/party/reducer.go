package party

import "github.com/Abhiram-Kasu/CrowdCue/internal/domain"

// Apply reduces one event into a party state and returns the new state.
// It is deterministic, total over the event union, and free of side effects.
// The input state is never mutated: the song queue is copied before any
// entry changes, so previously published snapshots stay stable.
func Apply(state domain.PartyState, ev domain.Event) domain.PartyState {
	switch e := ev.(type) {
	case domain.SongVoteUpdate:
		// A vote for a song no longer in the queue is a no-op, not an
		// error - the vote may have raced a removal.
		for i, song := range state.SongQueue {
			if song.SpotifyID == e.SpotifyID {
				queue := append([]domain.Song(nil), state.SongQueue...)
				queue[i].Votes = e.Votes
				state.SongQueue = queue
				break
			}
		}

	case domain.SongQueueAddition:
		// At most one queue entry per spotifyId; duplicate additions are
		// ignored so replaying the same addition is idempotent.
		for _, song := range state.SongQueue {
			if song.SpotifyID == e.Song.SpotifyID {
				return state
			}
		}
		queue := make([]domain.Song, 0, len(state.SongQueue)+1)
		queue = append(queue, state.SongQueue...)
		state.SongQueue = append(queue, e.Song)

	case domain.CurrentSongUpdate:
		song := e.Song
		state.CurrentSong = &song

	case domain.PlaybackStatusUpdate:
		state.Playing = e.Playing

	case domain.DurationUpdate:
		state.CurrentDuration = e.Duration
	}

	return state
}

// Replay folds a sequence of log entries over an initial state.
func Replay(state domain.PartyState, entries []domain.LogEntry) domain.PartyState {
	for _, entry := range entries {
		state = Apply(state, entry.Event)
	}
	return state
}
