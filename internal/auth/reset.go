package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reset token verification failures. The two cases are surfaced differently
// to the user, so they are distinct sentinels.
var (
	ErrTokenExpired = errors.New("reset token has expired")
	ErrTokenInvalid = errors.New("reset token is invalid")
)

const (
	resetTokenPurpose = "password_reset"
	resetTokenIssuer  = "haven"
)

// ResetTokenCodec issues and verifies signed, time-limited password reset
// tokens binding a user ID.
type ResetTokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokenCodec returns a codec signing with the given secret. Tokens
// expire ttl after issuance.
func NewResetTokenCodec(secret string, ttl time.Duration) *ResetTokenCodec {
	return &ResetTokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue produces a signed HS256 token embedding the user ID and expiry.
func (c *ResetTokenCodec) Issue(userID uint) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub":     strconv.FormatUint(uint64(userID), 10),
		"purpose": resetTokenPurpose,
		"iss":     resetTokenIssuer,
		"iat":     now.Unix(),
		"exp":     now.Add(c.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify decodes the token and returns the embedded user ID. It fails with
// ErrTokenExpired once the expiry has passed and ErrTokenInvalid for bad
// signatures, malformed payloads or tokens issued for another purpose.
// The caller must still confirm the user exists.
func (c *ResetTokenCodec) Verify(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(resetTokenIssuer), jwt.WithTimeFunc(c.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrTokenInvalid
	}
	if purpose, _ := claims["purpose"].(string); purpose != resetTokenPurpose {
		return 0, ErrTokenInvalid
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, ErrTokenInvalid
	}
	userID, parseErr := strconv.ParseUint(sub, 10, 32)
	if parseErr != nil {
		return 0, ErrTokenInvalid
	}

	return uint(userID), nil
}
