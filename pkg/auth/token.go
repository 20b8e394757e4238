package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trydo/wts-backend/pkg/config"
)

// clockSkew tolerates small drift between API replicas.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// SignedToken is a compact JWS plus its expiry.
type SignedToken struct {
	Value     string
	ExpiresAt time.Time
}

func checkConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return errors.New("jwt expiration minutes must be positive")
	}
	return nil
}

// MintAccessToken signs an HS256 session token valid for cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (SignedToken, error) {
	if err := checkConfig(cfg); err != nil {
		return SignedToken{}, err
	}
	if payload.UserID == uuid.Nil {
		return SignedToken{}, errors.New("user id is required")
	}
	if !payload.Role.IsValid() {
		return SignedToken{}, fmt.Errorf("invalid user role %q", payload.Role)
	}

	now = now.UTC().Truncate(time.Second)
	expires := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		UserID:     payload.UserID,
		Email:      payload.Email,
		Role:       payload.Role,
		LicenseKey: payload.LicenseKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   payload.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	value, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign jwt: %w", err)
	}
	return SignedToken{Value: value, ExpiresAt: expires}, nil
}

// ParseAccessToken verifies signature, issuer and expiry, and checks that the
// subject matches the embedded user id.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("%w: subject does not match user", jwt.ErrTokenInvalidClaims)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", jwt.ErrTokenInvalidClaims, claims.Role)
	}
	return claims, nil
}
