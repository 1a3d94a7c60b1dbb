package identity

import (
	"fmt"
	"time"

	"taskflow/internal/domain/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

type Claims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 access and refresh tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (ts *TokenService) sign(userID, kind string, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := &Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        fmt.Sprintf("%s-%d", kind, now.UnixNano()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
}

// Issue returns a fresh access/refresh pair for userID.
func (ts *TokenService) Issue(userID string) (access, refresh string, err error) {
	if access, err = ts.sign(userID, tokenAccess, ts.accessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = ts.sign(userID, tokenRefresh, ts.refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (ts *TokenService) parse(tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithTimeFunc(ts.now))
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// ParseAccess verifies an access token and returns its claims.
func (ts *TokenService) ParseAccess(tokenString string) (*Claims, error) {
	return ts.parse(tokenString, tokenAccess)
}

func (ts *TokenService) ParseRefresh(tokenString string) (*Claims, error) {
	return ts.parse(tokenString, tokenRefresh)
}
