package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
)

const (
	// tailGroup exists only to materialize the stream on creation; tailing
	// readers use plain XREAD so every subscriber sees the full order.
	tailGroup = "log"

	// startCursor is the cursor of a topic with no entries yet.
	startCursor = "0-0"

	readBatchSize = 64
)

func partyStream(partyID uuid.UUID) string {
	return "party:" + partyID.String() + ":log"
}

// EventLog implements domain.EventLog on Redis Streams. Each party gets one
// stream; XADD serializes the append order and XREAD lets any number of
// subscribers tail it independently.
type EventLog struct {
	rdb    *goredis.Client
	create singleflight.Group
}

var _ domain.EventLog = (*EventLog)(nil)

func NewEventLog(rdb *goredis.Client) *EventLog {
	return &EventLog{rdb: rdb}
}

// EnsureTopic idempotently creates the party's stream. Concurrent first-time
// callers collapse onto one creation via singleflight; a racing creation on
// another instance surfaces as BUSYGROUP, which also means the topic exists.
func (l *EventLog) EnsureTopic(ctx context.Context, partyID uuid.UUID) error {
	key := partyStream(partyID)
	_, err, _ := l.create.Do(key, func() (any, error) {
		err := l.rdb.XGroupCreateMkStream(ctx, key, tailGroup, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("failed to create stream %s: %w", key, err)
		}
		return nil, nil
	})
	return err
}

// Append adds an event to the stream tail and returns the stream ID Redis
// assigned. Once XADD acknowledges, the event is part of the party's
// permanent order.
func (l *EventLog) Append(ctx context.Context, partyID uuid.UUID, ev domain.Event) (string, error) {
	data, err := domain.EncodeEvent(partyID.String(), ev)
	if err != nil {
		return "", err
	}

	id, err := l.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: partyStream(partyID),
		Values: map[string]any{
			"type":     string(ev.Kind()),
			"envelope": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to stream: %w", err)
	}
	return id, nil
}

// LastID reports the stream's last generated ID without consuming anything.
// A party without a stream yet reports the start cursor.
func (l *EventLog) LastID(ctx context.Context, partyID uuid.UUID) (string, error) {
	info, err := l.rdb.XInfoStream(ctx, partyStream(partyID)).Result()
	if err != nil {
		if isNoSuchKey(err) {
			return startCursor, nil
		}
		return "", fmt.Errorf("failed to read stream info: %w", err)
	}
	return info.LastGeneratedID, nil
}

// ReadFrom returns entries appended strictly after cursor, blocking up to
// block for new entries. An empty read (timeout) is not an error.
func (l *EventLog) ReadFrom(ctx context.Context, partyID uuid.UUID, cursor string, block time.Duration) ([]domain.LogEntry, string, error) {
	key := partyStream(partyID)

	streams, err := l.rdb.XRead(ctx, &goredis.XReadArgs{
		Streams: []string{key, cursor},
		Count:   readBatchSize,
		Block:   block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, cursor, nil
	}
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to read stream tail: %w", err)
	}

	var entries []domain.LogEntry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entry, ok := decodeMessage(msg)
			if !ok {
				continue
			}
			entries = append(entries, entry)
			cursor = msg.ID
		}
	}
	return entries, cursor, nil
}

// ReadAll returns every entry of the party's stream, oldest first.
func (l *EventLog) ReadAll(ctx context.Context, partyID uuid.UUID) ([]domain.LogEntry, error) {
	msgs, err := l.rdb.XRange(ctx, partyStream(partyID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range stream: %w", err)
	}

	entries := make([]domain.LogEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, ok := decodeMessage(msg)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeMessage parses one stream message back into a typed event. Malformed
// entries are logged and skipped rather than wedging every tailing reader.
func decodeMessage(msg goredis.XMessage) (domain.LogEntry, bool) {
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		slog.Warn("Stream message missing envelope field", "stream_id", msg.ID)
		return domain.LogEntry{}, false
	}
	_, ev, err := domain.DecodeEnvelope([]byte(raw))
	if err != nil {
		slog.Warn("Failed to decode stream message", "stream_id", msg.ID, "error", err)
		return domain.LogEntry{}, false
	}
	return domain.LogEntry{ID: msg.ID, Event: ev}, true
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such key")
}
