package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Typed verification failures. Callers classify these instead of matching
// error strings.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenNotYetValid      = errors.New("token not yet valid")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

var (
	accessSecret  []byte
	refreshSecret []byte
)

// SetTokenSecrets configures the signing keys. Access and refresh tokens use
// distinct secrets so one can never be presented in place of the other.
func SetTokenSecrets(access, refresh string) {
	accessSecret = []byte(access)
	refreshSecret = []byte(refresh)
}

// TokenClaims is the payload carried by both token kinds.
type TokenClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseExpire converts a duration string like "15m", "12h" or "7d" into a
// time.Duration. Unsupported units are an error, never a silent default.
func ParseExpire(expire string) (time.Duration, error) {
	if len(expire) < 2 {
		return 0, fmt.Errorf("invalid expire string: %q", expire)
	}

	value, err := strconv.Atoi(expire[:len(expire)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid expire value in %q: %w", expire, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("expire must be positive, got %q", expire)
	}

	switch expire[len(expire)-1] {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit in %q", expire)
	}
}

// GenerateAccessToken signs a short-lived access token for the user.
func GenerateAccessToken(userID uint, expire string) (string, time.Time, error) {
	return generateToken(userID, expire, accessSecret)
}

// GenerateRefreshToken signs a long-lived refresh token for the user.
func GenerateRefreshToken(userID uint, expire string) (string, time.Time, error) {
	return generateToken(userID, expire, refreshSecret)
}

func generateToken(userID uint, expire string, secret []byte) (string, time.Time, error) {
	ttl, err := ParseExpire(expire)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// Timestamps have second precision, so without a unique jti two
			// tokens minted for the same user in the same second would be
			// byte-identical and rotation could revoke the pair it just issued.
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccessToken verifies an access token and returns its claims.
func ParseAccessToken(tokenString string) (*TokenClaims, error) {
	return parseToken(tokenString, accessSecret)
}

// ParseRefreshToken verifies a refresh token and returns its claims.
func ParseRefreshToken(tokenString string) (*TokenClaims, error) {
	return parseToken(tokenString, refreshSecret)
}

func parseToken(tokenString string, secret []byte) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}

// AccessTokenRemainingTTL reports how long an access token stays valid. The
// signature is still checked but expiry is not, so an already expired token
// yields a zero TTL instead of an error. Used to size revocation entries.
func AccessTokenRemainingTTL(tokenString string) time.Duration {
	return remainingTTL(tokenString, accessSecret)
}

// RefreshTokenRemainingTTL is AccessTokenRemainingTTL for refresh tokens.
func RefreshTokenRemainingTTL(tokenString string) time.Duration {
	return remainingTTL(tokenString, refreshSecret)
}

func remainingTTL(tokenString string, secret []byte) time.Duration {
	claims := &TokenClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 0 {
		return 0
	}
	return ttl
}
