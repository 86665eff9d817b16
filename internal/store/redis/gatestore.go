package redis

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fxscanner/internal/alertgate"
)

const gateKeyPrefix = "fxscan:alert:"

// GateStore is an alertgate.KeyStore shared by every scanner instance
// through SET NX. While the breaker is open it answers from a local
// MemoryStore, which also mirrors every key Redis accepted so an outage
// does not re-open keys already sent.
type GateStore struct {
	client *goredis.Client
	cb     *CircuitBreaker
	local  *alertgate.MemoryStore
	logger zerolog.Logger

	// OnFallback is called when a mark was answered locally (optional).
	OnFallback func()
}

// NewGateStore creates a store over client. local may be shared with
// other components; nil creates a private one.
func NewGateStore(client *goredis.Client, cb *CircuitBreaker, local *alertgate.MemoryStore) *GateStore {
	if local == nil {
		local = alertgate.NewMemoryStore(0)
	}
	return &GateStore{
		client: client,
		cb:     cb,
		local:  local,
		logger: log.With().Str("component", "gate-store").Logger(),
	}
}

func (s *GateStore) MarkOnce(ctx context.Context, key string, now, expireAt time.Time) (bool, error) {
	ttl := expireAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}

	var first bool
	err := s.cb.Execute(func() error {
		ok, err := s.client.SetNX(ctx, gateKeyPrefix+key, now.Unix(), ttl).Result()
		if err != nil {
			return err
		}
		first = ok
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis unavailable, using local gate")
		if s.OnFallback != nil {
			s.OnFallback()
		}
		return s.local.MarkOnce(ctx, key, now, expireAt)
	}

	// mirror locally; the result is irrelevant, Redis is authoritative
	s.local.MarkOnce(ctx, key, now, expireAt)
	return first, nil
}
