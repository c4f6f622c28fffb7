package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerify_RoundTrip(t *testing.T) {
	m := New("test-secret", time.Hour)

	tok, err := m.Mint("feed-1", "", 0)
	require.NoError(t, err)

	claims, outcome, err := m.Verify(tok, "feed-1", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "feed-1", claims.FeedID)
	assert.NotEmpty(t, claims.ViewerID())
}

func TestVerify_FeedMismatch(t *testing.T) {
	m := New("test-secret", time.Hour)

	tok, err := m.Mint("feed-1", "", 0)
	require.NoError(t, err)

	_, outcome, err := m.Verify(tok, "feed-2", "")
	assert.Equal(t, OutcomeFeedMismatch, outcome)
	assert.ErrorIs(t, err, ErrFeedMismatch)
}

func TestVerify_Expired(t *testing.T) {
	m := New("test-secret", time.Hour)

	tok, err := m.Mint("feed-1", "", 1*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, outcome, err := m.Verify(tok, "feed-1", "")
	assert.Equal(t, OutcomeExpired, outcome)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_IPBinding(t *testing.T) {
	m := New("test-secret", time.Hour)

	tok, err := m.Mint("feed-1", "10.0.0.1", 0)
	require.NoError(t, err)

	_, outcome, err := m.Verify(tok, "feed-1", "10.0.0.1")
	assert.Equal(t, OutcomeOK, outcome)
	assert.NoError(t, err)

	_, outcome, err = m.Verify(tok, "feed-1", "10.0.0.2")
	assert.Equal(t, OutcomeIPMismatch, outcome)
	assert.ErrorIs(t, err, ErrIPMismatch)
}

func TestVerify_NoIPBoundSkipsCheck(t *testing.T) {
	m := New("test-secret", time.Hour)

	tok, err := m.Mint("feed-1", "", 0)
	require.NoError(t, err)

	_, outcome, err := m.Verify(tok, "feed-1", "10.0.0.9")
	assert.Equal(t, OutcomeOK, outcome, "a token minted without an ip must verify against any client ip")
	assert.NoError(t, err)
}

func TestVerify_InvalidSignature(t *testing.T) {
	m1 := New("secret-a", time.Hour)
	m2 := New("secret-b", time.Hour)

	tok, err := m1.Mint("feed-1", "", 0)
	require.NoError(t, err)

	_, outcome, err := m2.Verify(tok, "feed-1", "")
	assert.Equal(t, OutcomeInvalid, outcome)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMint_DefaultExpiryAppliesWhenTTLZero(t *testing.T) {
	m := New("test-secret", 2*time.Hour)

	tok, err := m.Mint("feed-1", "", 0)
	require.NoError(t, err)

	claims, outcome, err := m.Verify(tok, "feed-1", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)

	ttl := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	assert.InDelta(t, 2*time.Hour, ttl, float64(time.Second))
}
