package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken    = errors.New("empty token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingUserID = errors.New("token carries no user id")
)

// JWTValidator verifies access tokens issued by the account service and extracts the user id.
type JWTValidator struct {
	method jwt.SigningMethod
	key    any
}

func NewJWTValidatorHS256(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("hs256 secret is empty")
	}
	return &JWTValidator{method: jwt.SigningMethodHS256, key: []byte(secret)}, nil
}

// NewJWTValidatorRS256 loads a PEM encoded RSA public key from the filesystem.
func NewJWTValidatorRS256(pubPath string) (*JWTValidator, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &JWTValidator{method: jwt.SigningMethodRS256, key: pub}, nil
}

// Validate returns the user id on success. The id is read from the user_id claim
// (number or numeric string) and falls back to sub.
func (j *JWTValidator) Validate(tokenStr string) (int64, error) {
	if tokenStr == "" {
		return 0, ErrEmptyToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.key, nil
	}, jwt.WithValidMethods([]string{j.method.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	if id, ok := claimID(claims["user_id"]); ok {
		return id, nil
	}
	if id, ok := claimID(claims["sub"]); ok {
		return id, nil
	}
	return 0, ErrMissingUserID
}

func claimID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case string:
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// CredentialFrom picks the handshake credential: the token query parameter wins over
// the Authorization header.
func CredentialFrom(queryToken, authHeader string) string {
	if queryToken != "" {
		return queryToken
	}
	tok, err := ParseBearerToken(authHeader)
	if err != nil {
		return ""
	}
	return tok
}
