package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/collabboard/collabboard/internal/domain"
)

// PubSub is the cross-process fan-out bus. A committed board event published
// here reaches every server process with a live subscription to the board's
// channel. Delivery is at-least-once for currently-registered subscribers;
// anything missed remains discoverable through event-log replay.
type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

// NewFromClient wraps an existing client. The caller keeps ownership of the
// client's lifecycle.
func NewFromClient(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// Client exposes the underlying connection so other Redis-backed components
// can share it.
func (ps *PubSub) Client() *redis.Client {
	return ps.client
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Publish broadcasts payload to channel. A failure maps to
// domain.ErrFanoutUnavailable; committed events are never rolled back for
// it, the caller logs and relies on replay.
func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w: %w", domain.ErrFanoutUnavailable, err)
	}
	return nil
}

// Subscribe registers interest in channel. Messages arrive on the returned
// buffered channel until ctx is done or cleanup is called; the channel is
// closed on teardown.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation so no publish after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// BoardChannel returns the fan-out channel name for a board.
func BoardChannel(boardID uuid.UUID) string {
	return "board:" + boardID.String()
}
