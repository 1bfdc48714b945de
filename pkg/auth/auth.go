// Package auth hashes API client secrets with bcrypt and issues HS256 JWTs.
// Leaf package with no domain dependencies; used by internal/domain/auth and
// internal/api/middleware.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the bcrypt work factor for client secrets.
const BCryptCost = 12

// DefaultJWTExpiry is the token lifetime in hours when JWT_EXPIRY is unset.
const DefaultJWTExpiry = 24

// SecretBytes is the entropy of generated client secrets and JWT signing keys.
const SecretBytes = 32

const (
	EnvJWTSecret = "JWT_SECRET"
	EnvJWTExpiry = "JWT_EXPIRY"
)

var ErrJWTSecretMissing = errors.New(EnvJWTSecret + " environment variable not set")

// getJWTSecret panics when JWT_SECRET is unset: the server must not start without it.
func getJWTSecret() []byte {
	secret := os.Getenv(EnvJWTSecret)
	if secret == "" {
		panic(ErrJWTSecretMissing.Error())
	}
	return []byte(secret)
}

// CheckJWTSecret reports ErrJWTSecretMissing instead of panicking; call it at startup.
func CheckJWTSecret() error {
	if os.Getenv(EnvJWTSecret) == "" {
		return ErrJWTSecretMissing
	}
	return nil
}

// parseJWTExpiry parses an hour count. Empty or non-numeric input yields the default.
func parseJWTExpiry(expiryStr string) time.Duration {
	if expiryStr == "" {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}

	hours, err := strconv.Atoi(expiryStr)
	if err != nil {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

func getJWTExpiry() time.Duration {
	return parseJWTExpiry(os.Getenv(EnvJWTExpiry))
}

// GenerateSecret returns SecretBytes of randomness, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret hashes a client secret using bcrypt.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret returns false for a mismatch and for a malformed hash alike.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Claims identifies the API client and the workspace it acts in.
type Claims struct {
	ClientID    string `json:"client_id"`
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for clientID in workspaceID, valid for JWT_EXPIRY hours.
func GenerateJWT(clientID, workspaceID string) (string, error) {
	now := time.Now()
	expiresAt := now.Add(getJWTExpiry())

	claims := &Claims{
		ClientID:    clientID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(getJWTSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// ParseJWT validates signature, algorithm and expiry and returns the claims.
func ParseJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Reject algorithm substitution.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTSecret(), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}

	return claims, nil
}
