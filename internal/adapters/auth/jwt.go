// Package auth validates the bearer tokens presented on the WebSocket
// handshake. Tokens are HS256 JWTs minted by the REST collaborator;
// this service only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/ports"
)

// ErrAuthRequired is returned for missing, malformed, expired or
// otherwise unverifiable tokens.
var ErrAuthRequired = errors.New("authentication required")

// JWTValidator checks HS256 signatures and standard claims.
type JWTValidator struct {
	secret []byte
	issuer string
}

var _ ports.AuthPort = (*JWTValidator)(nil)

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer}
}

// Validate parses the token and returns the authenticated user id from
// the subject claim.
func (v *JWTValidator) Validate(ctx context.Context, tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrAuthRequired
	}
	if len(v.secret) == 0 {
		return uuid.Nil, fmt.Errorf("jwt secret not configured: %w", ErrAuthRequired)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return uuid.Nil, fmt.Errorf("token missing subject: %w", ErrAuthRequired)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id: %w", ErrAuthRequired)
	}
	return userID, nil
}
