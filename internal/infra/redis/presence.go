package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks which lobbies currently have live feed watchers. Markers
// are best effort: they carry a TTL so a crashed process cannot leave a
// lobby marked live forever, and could be extended to route cross-instance
// pub/sub.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Touch(lobbyID string) {
	_ = p.client.Set(context.Background(), p.key(lobbyID), "1", p.ttl).Err()
}

func (p *Presence) Release(lobbyID string) {
	_ = p.client.Del(context.Background(), p.key(lobbyID)).Err()
}

func (p *Presence) key(lobbyID string) string {
	return "lobby:live:" + lobbyID
}
