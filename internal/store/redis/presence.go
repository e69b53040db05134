package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/collabboard/collabboard/internal/domain"
)

// DefaultPresenceTTL is how long a viewer stays present without a heartbeat.
const DefaultPresenceTTL = 5 * time.Minute

// Presence tracks which users are viewing which board. Entries live in a
// hash per board with a key-level TTL; expiry is passive, so a stale entry
// disappears when the key expires rather than the instant its heartbeat
// stops.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{client: client, ttl: ttl}
}

// PresenceKey returns the hash key holding a board's viewers.
func PresenceKey(boardID uuid.UUID) string {
	return "presence:" + boardID.String()
}

// Join upserts the user's entry and refreshes the board key's expiry.
func (p *Presence) Join(ctx context.Context, boardID, userID uuid.UUID, userName string) error {
	entry := domain.PresenceEntry{
		UserID:   userID,
		UserName: userName,
		JoinedAt: time.Now().UnixMilli(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis.Presence.Join: marshal: %w", err)
	}

	key := PresenceKey(boardID)
	if err := p.client.HSet(ctx, key, userID.String(), raw).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Join: %w", err)
	}
	if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Join: expire: %w", err)
	}

	return nil
}

// Heartbeat extends the expiry while preserving the original joinedAt.
// A heartbeat for an absent entry is a no-op.
func (p *Presence) Heartbeat(ctx context.Context, boardID, userID uuid.UUID) error {
	key := PresenceKey(boardID)

	raw, err := p.client.HGet(ctx, key, userID.String()).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis.Presence.Heartbeat: %w", err)
	}

	if err := p.client.HSet(ctx, key, userID.String(), raw).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Heartbeat: %w", err)
	}
	if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Heartbeat: expire: %w", err)
	}

	return nil
}

// Leave removes the user's entry immediately.
func (p *Presence) Leave(ctx context.Context, boardID, userID uuid.UUID) error {
	if err := p.client.HDel(ctx, PresenceKey(boardID), userID.String()).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Leave: %w", err)
	}
	return nil
}

// Snapshot returns the current non-expired viewers of a board.
func (p *Presence) Snapshot(ctx context.Context, boardID uuid.UUID) ([]*domain.PresenceEntry, error) {
	data, err := p.client.HGetAll(ctx, PresenceKey(boardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.Presence.Snapshot: %w", err)
	}

	entries := make([]*domain.PresenceEntry, 0, len(data))
	for _, raw := range data {
		var entry domain.PresenceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("redis.Presence.Snapshot: unmarshal: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
