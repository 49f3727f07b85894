// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const relayIssuer = "relaychat"

var ErrInvalidToken = errors.New("invalid relay token")

// RelayClaims identify a peer server allowed to replay entities with ids it
// minted itself.
type RelayClaims struct {
	Server uint32 `json:"server"`
	jwt.RegisteredClaims
}

// GenerateRelayToken signs a token for peer, valid for ttl.
func GenerateRelayToken(peer string, server uint32, secretKey []byte, ttl time.Duration) (string, error) {
	if peer == "" {
		return "", errors.New("peer name cannot be empty")
	}
	if len(secretKey) == 0 {
		return "", errors.New("relay secret cannot be empty")
	}

	now := time.Now()
	claims := RelayClaims{
		Server: server,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    relayIssuer,
			Subject:   peer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ValidateRelayToken checks signature, issuer and expiry and returns the claims.
func ValidateRelayToken(tokenString string, secretKey []byte) (*RelayClaims, error) {
	claims := &RelayClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	}, jwt.WithIssuer(relayIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
