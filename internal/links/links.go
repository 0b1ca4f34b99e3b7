// Package links builds and parses the signed password-reset link tokens
// that wrap a stored recovery token for transport in an emailed URL. The
// signature only protects the link in transit; the recovery token itself
// is still resolved and consumed through the account store.
package links

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/authstore/internal/common"
)

// Claims carries the account and its outstanding recovery token inside a
// signed reset link.
type Claims struct {
	jwt.RegisteredClaims
	Username      string `json:"username"`
	RecoveryToken string `json:"recoveryToken"`
}

// BuildResetLinkToken signs a reset-link token for the given account and
// recovery token, valid for validityDuration (HS256).
func BuildResetLinkToken(username, recoveryToken string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if username == "" || recoveryToken == "" {
		return "", fmt.Errorf("%w: username and recovery token are required", common.ErrInvalidArgument)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Username:      username,
		RecoveryToken: recoveryToken,
	})

	signed, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ParseResetLinkToken verifies the signature and expiry of a reset-link
// token and returns the embedded username and recovery token.
func ParseResetLinkToken(tokenString string, secretKey []byte) (username, recoveryToken string, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrTokenNotFound, err)
	}
	if !token.Valid || claims.Username == "" || claims.RecoveryToken == "" {
		return "", "", fmt.Errorf("%w: malformed reset link", common.ErrTokenNotFound)
	}

	return claims.Username, claims.RecoveryToken, nil
}
