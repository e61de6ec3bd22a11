package security

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Роли API статуса
const (
	RoleViewer = "repricer:viewer"
	RoleAdmin  = "admin"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// JWTValidator проверяет RS256 токены, выпущенные внешним сервисом авторизации.
// Проверенные claims кэшируются до истечения токена.
type JWTValidator struct {
	publicKey *rsa.PublicKey
	issuer    string
	cache     *cache.Cache
}

func NewJWTValidator(publicKeyPEM []byte, issuer string) (*JWTValidator, error) {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &JWTValidator{
		publicKey: publicKey,
		issuer:    issuer,
		cache:     cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*interfaces.Claims, error) {
	key := tokenKey(tokenString)
	if cached, ok := v.cache.Get(key); ok {
		return cached.(*interfaces.Claims), nil
	}

	claims, err := v.parse(tokenString)
	if err != nil {
		return nil, err
	}

	result := &interfaces.Claims{Subject: claims.Subject, Roles: claims.Roles}
	ttl := cache.DefaultExpiration
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left < 5*time.Minute {
			ttl = left
		}
	}
	v.cache.Set(key, result, ttl)

	return result, nil
}

func (v *JWTValidator) parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (v *JWTValidator) HasRole(claims *interfaces.Claims, role string) bool {
	for _, r := range claims.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

func (v *JWTValidator) HasAnyRole(claims *interfaces.Claims, roles ...string) bool {
	for _, role := range roles {
		if v.HasRole(claims, role) {
			return true
		}
	}
	return false
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
