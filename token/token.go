// Package token mints and verifies signed playback tokens, grounded on
// an existing HS256/jwt.MapClaims middleware pattern and
// original_source/api/auth.py's claim shape and error-to-outcome
// mapping.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Outcome classifies a verification failure so httpapi can map it to
// the exact status code each case warrants.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalid
	OutcomeExpired
	OutcomeFeedMismatch
	OutcomeIPMismatch
)

var (
	// ErrInvalid covers bad signature and bad structure; neither is
	// distinguished at the outcome level.
	ErrInvalid      = errors.New("token: invalid signature or structure")
	ErrExpired      = errors.New("token: expired")
	ErrFeedMismatch = errors.New("token: feed mismatch")
	ErrIPMismatch   = errors.New("token: ip mismatch")
)

// Claims is the playback token's payload: feed_id, iat, exp, jti,
// optional ip.
type Claims struct {
	FeedID string `json:"feed_id"`
	IP     string `json:"ip,omitempty"`
	jwt.RegisteredClaims
}

// Minter mints and verifies HS256 playback tokens against a single
// shared secret.
type Minter struct {
	secret        []byte
	defaultExpiry time.Duration
}

func New(secret string, defaultExpiry time.Duration) *Minter {
	return &Minter{secret: []byte(secret), defaultExpiry: defaultExpiry}
}

// Mint issues a token for feedID, optionally bound to clientIP, valid
// for ttl (or the Minter's default if ttl is zero).
func (m *Minter) Mint(feedID, clientIP string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.defaultExpiry
	}

	jti, err := newJTI()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		FeedID: feedID,
		IP:     clientIP,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Verify checks signature, expiry, feed_id match, and (if the token
// carries one) IP match against clientIP. It returns the parsed Claims
// alongside an Outcome so callers never need to parse error strings.
func (m *Minter) Verify(tokenString, feedID, clientIP string) (*Claims, Outcome, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, OutcomeExpired, ErrExpired
		}
		return nil, OutcomeInvalid, ErrInvalid
	}
	if !parsed.Valid {
		return nil, OutcomeInvalid, ErrInvalid
	}

	if claims.FeedID != feedID {
		return claims, OutcomeFeedMismatch, ErrFeedMismatch
	}

	if claims.IP != "" && claims.IP != clientIP {
		return claims, OutcomeIPMismatch, ErrIPMismatch
	}

	return claims, OutcomeOK, nil
}

// ViewerID returns the identifier a heartbeat should use when none was
// supplied explicitly: the token's jti doubles as a viewer identifier
// when a heartbeat arrives without one.
func (c *Claims) ViewerID() string {
	return c.ID
}

func newJTI() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
