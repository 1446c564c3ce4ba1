package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	accessTTL  = 1 * time.Hour
	refreshTTL = 7 * 24 * time.Hour
	issuer     = "pdf-chat-platform"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_exp"`
	RefreshExp   time.Time `json:"refresh_exp"`
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates JWT pairs. JTIs are stored in Redis so
// tokens can be revoked before their natural expiry.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	rdb           *redis.Client
}

func NewTokenManager(accessSecret, refreshSecret string, rdb *redis.Client) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		rdb:           rdb,
	}
}

func (tm *TokenManager) IssueTokenPair(userID, username string) (*TokenPair, error) {
	now := time.Now()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessString, err := tm.sign(userID, username, accessJTI, now, accessExp, tm.accessSecret)
	if err != nil {
		return nil, err
	}
	refreshString, err := tm.sign(userID, username, refreshJTI, now, refreshExp, tm.refreshSecret)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	pipe := tm.rdb.Pipeline()
	pipe.Set(ctx, "access:"+accessJTI, userID, accessTTL)
	pipe.Set(ctx, "refresh:"+refreshJTI, userID, refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (tm *TokenManager) sign(userID, username, jti string, now, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (tm *TokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return tm.validate(tokenString, tm.accessSecret, "access:")
}

func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return tm.validate(tokenString, tm.refreshSecret, "refresh:")
}

func (tm *TokenManager) validate(tokenString string, secret []byte, prefix string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	ctx := context.Background()
	exists, err := tm.rdb.Exists(ctx, prefix+claims.ID).Result()
	if err != nil || exists != 1 {
		return nil, errors.New("token revoked or expired")
	}

	return claims, nil
}

func (tm *TokenManager) RevokeToken(jti string, isRefresh bool) error {
	prefix := "access:"
	if isRefresh {
		prefix = "refresh:"
	}
	return tm.rdb.Del(context.Background(), prefix+jti).Err()
}

// RevokeAllUserTokens drops every live JTI belonging to a user, e.g. on
// account deletion.
func (tm *TokenManager) RevokeAllUserTokens(userID string) error {
	ctx := context.Background()
	pipe := tm.rdb.Pipeline()

	for _, pattern := range []string{"access:*", "refresh:*"} {
		iter := tm.rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			if val, _ := tm.rdb.Get(ctx, key).Result(); val == userID {
				pipe.Del(ctx, key)
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
