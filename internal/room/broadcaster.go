package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

const (
	historyLen = 50
	historyTTL = 24 * time.Hour
)

// Broadcaster fans room events out to listeners and keeps a short replay log.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
	Recent(ctx context.Context, roomID string, n int64) ([]Event, error)
}

type RedisBroadcaster struct {
	rdb redis.Cmdable
}

func NewRedisBroadcaster(rdb redis.Cmdable) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

// Channel is the pub/sub channel carrying a room's events.
func Channel(roomID string) string {
	return "room:" + roomID
}

func historyKey(roomID string) string {
	return "room:" + roomID + ":events"
}

// Publish sends ev on the room channel and prepends it to the room's capped history list.
func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode room event: %w", err)
	}

	key := historyKey(ev.RoomID)
	pipe := b.rdb.TxPipeline()
	pipe.Publish(ctx, Channel(ev.RoomID), data)
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyLen-1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

// Recent returns up to n of the room's latest events, newest first.
func (b *RedisBroadcaster) Recent(ctx context.Context, roomID string, n int64) ([]Event, error) {
	if n <= 0 || n > historyLen {
		n = historyLen
	}

	raw, err := b.rdb.LRange(ctx, historyKey(roomID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read room history: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			logger.Warn("Skipping malformed room event", "room_id", roomID, "error", err.Error())
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
