package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBlacklist_RevokeToken(t *testing.T) {
	bl := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "jti-batch-session-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.RevokeToken(ctx, "jti-batch-session-1", time.Minute))

	revoked, err = bl.IsRevoked(ctx, "jti-batch-session-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Other tokens are untouched.
	revoked, err = bl.IsRevoked(ctx, "jti-batch-session-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryBlacklist_RevocationExpires(t *testing.T) {
	bl := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, bl.RevokeToken(ctx, "jti-short", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	revoked, err := bl.IsRevoked(ctx, "jti-short")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation entry should lapse with the token's lifetime")
}

func TestInMemoryBlacklist_RevokeUserSessions(t *testing.T) {
	bl := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	issuedBefore := time.Now()
	time.Sleep(time.Millisecond)
	require.NoError(t, bl.RevokeUserSessions(ctx, "scanner-operator-7", time.Hour))
	time.Sleep(time.Millisecond)
	issuedAfter := time.Now()

	revoked, err := bl.IsSessionRevoked(ctx, "scanner-operator-7", issuedBefore)
	require.NoError(t, err)
	assert.True(t, revoked, "tokens issued before the revocation are rejected")

	revoked, err = bl.IsSessionRevoked(ctx, "scanner-operator-7", issuedAfter)
	require.NoError(t, err)
	assert.False(t, revoked, "tokens issued after the revocation stay valid")

	// Other users are unaffected.
	revoked, err = bl.IsSessionRevoked(ctx, "scanner-operator-8", issuedBefore)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryBlacklist_ConcurrentAccess(t *testing.T) {
	bl := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			jti := string(rune('a' + n))
			_ = bl.RevokeToken(ctx, jti, time.Minute)
			_, _ = bl.IsRevoked(ctx, jti)
			_ = bl.RevokeUserSessions(ctx, jti, time.Minute)
			_, _ = bl.IsSessionRevoked(ctx, jti, time.Now())
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	revoked, err := bl.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)
}
