package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portfoliotree/app/src/pkg/model"
)

const tokenIssuer = "portfoliotree"

// TokenClaims carries the session id of an HTTP client.
type TokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenIssue signs a session token valid for ttl.
func TokenIssue(sessionID string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenIssuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	tokenString, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// TokenValidate checks signature, expiry and issuer of a session token and returns its session id.
func TokenValidate(tokenString string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("%w: invalid session token", model.ErrUnauthenticated)
	}
	return claims.SessionID, nil
}
