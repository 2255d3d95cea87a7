package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fulfillment/backend/internal/infrastructure/config"
)

// TokenBlacklist rejects tokens that were revoked before their natural
// expiry: a single token on logout, or every session of a user when their
// scanner credentials are rotated.
type TokenBlacklist interface {
	// RevokeToken marks a token's JTI as revoked. ttl should cover the
	// token's remaining lifetime; after that the entry is irrelevant anyway.
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether a token's JTI has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUserSessions invalidates every token a user holds by recording
	// the revocation instant. Tokens issued at or before it are rejected.
	RevokeUserSessions(ctx context.Context, userID string, ttl time.Duration) error

	// IsSessionRevoked reports whether a token issued at tokenIssuedAt
	// falls before the user's last session revocation.
	IsSessionRevoked(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error)
}

const revocationKeyPrefix = "auth:revoked:"

// RedisTokenBlacklist stores revocations in Redis so every API instance
// sees a logout immediately.
type RedisTokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklist connects to Redis and verifies the connection
// before returning, so a misconfigured address fails at startup rather
// than on the first logout.
func NewRedisTokenBlacklist(cfg config.RedisConfig) (*RedisTokenBlacklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for token blacklist: %w", err)
	}

	return &RedisTokenBlacklist{client: client}, nil
}

func jtiKey(jti string) string {
	return revocationKeyPrefix + "jti:" + jti
}

func userKey(userID string) string {
	return revocationKeyPrefix + "user:" + userID
}

// RevokeToken marks the JTI revoked for the given TTL.
func (b *RedisTokenBlacklist) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the JTI has a live revocation entry.
func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

// RevokeUserSessions records the current instant as the user's revocation
// watermark. Tokens issued at or before it are rejected until the TTL runs
// out, which should cover the longest refresh-token lifetime.
func (b *RedisTokenBlacklist) RevokeUserSessions(ctx context.Context, userID string, ttl time.Duration) error {
	watermark := time.Now().Unix()
	if err := b.client.Set(ctx, userKey(userID), watermark, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// IsSessionRevoked compares the token's issue time against the user's
// revocation watermark.
func (b *RedisTokenBlacklist) IsSessionRevoked(ctx context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}

	watermark, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse session revocation watermark: %w", err)
	}
	return tokenIssuedAt.Unix() <= watermark, nil
}

// Close closes the Redis client.
func (b *RedisTokenBlacklist) Close() error {
	return b.client.Close()
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist keeps revocations in process memory. Suitable for
// single-instance deployments and tests; revocations do not propagate to
// other instances.
type InMemoryTokenBlacklist struct {
	mu         sync.RWMutex
	revokedJTI map[string]time.Time // JTI -> entry expiry
	watermarks map[string]time.Time // userID -> session revocation instant
}

// NewInMemoryTokenBlacklist creates an empty in-memory blacklist.
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		revokedJTI: make(map[string]time.Time),
		watermarks: make(map[string]time.Time),
	}
}

// RevokeToken marks the JTI revoked until the TTL elapses.
func (b *InMemoryTokenBlacklist) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revokedJTI[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether the JTI is revoked, dropping expired entries.
func (b *InMemoryTokenBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.revokedJTI[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.revokedJTI, jti)
		return false, nil
	}
	return true, nil
}

// RevokeUserSessions records now as the user's revocation watermark.
func (b *InMemoryTokenBlacklist) RevokeUserSessions(_ context.Context, userID string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watermarks[userID] = time.Now()
	return nil
}

// IsSessionRevoked compares the token's issue time against the watermark.
// Nanosecond precision so tokens minted immediately after a revocation in
// the same process stay valid.
func (b *InMemoryTokenBlacklist) IsSessionRevoked(_ context.Context, userID string, tokenIssuedAt time.Time) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	watermark, ok := b.watermarks[userID]
	if !ok {
		return false, nil
	}
	return tokenIssuedAt.UnixNano() <= watermark.UnixNano(), nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
