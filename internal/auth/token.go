// Package auth issues and verifies the bearer session tokens that gate
// access to the signaling transport. A token binds one participant to one
// meeting for a bounded time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/domain"
)

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	UserID    string `json:"uid"`
	MeetingID string `json:"mid"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Mint returns a signed token for one participant in one meeting.
func (i *Issuer) Mint(userID domain.ParticipantID, meetingID domain.RoomID) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		UserID:    string(userID),
		MeetingID: string(meetingID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.MeetingID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
