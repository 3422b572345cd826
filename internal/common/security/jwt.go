package security

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

var tokenTTL = 72 * time.Hour

// InitJWT configures the shared HS256 verifier. Token issuance lives in the
// account service; this process only verifies.
func InitJWT(key []byte, ttl time.Duration) {
	TokenAuth = jwtauth.New("HS256", key, nil)
	if ttl > 0 {
		tokenTTL = ttl
	}
}

// GenerateToken mints a token with the claims the middleware expects.
// Used by tooling and tests.
func GenerateToken(userID, role string) (string, error) {
	if TokenAuth == nil {
		return "", errors.New("jwt not initialized")
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

// ParseToken verifies a raw token string and returns its user id and role.
// The websocket endpoint uses it for tokens passed as a query parameter.
func ParseToken(raw string) (userID, role string, err error) {
	if TokenAuth == nil {
		return "", "", errors.New("jwt not initialized")
	}
	token, err := jwtauth.VerifyToken(TokenAuth, raw)
	if err != nil {
		return "", "", err
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return "", "", err
	}
	if userID, err = GetUserIDFromClaims(claims); err != nil {
		return "", "", err
	}
	if role, err = GetUserRoleFromClaims(claims); err != nil {
		return "", "", err
	}
	return userID, role, nil
}
