package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

// Claims carried by an access token.
type Claims struct {
	BusinessID uint   `json:"business_id"`
	IsAdmin    bool   `json:"is_admin"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(user *models.User) (string, error) {
	now := t.now()
	claims := Claims{
		BusinessID: user.BusinessID,
		IsAdmin:    user.IsAdmin,
		Type:       "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies signature, expiry and token type.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	if claims.Type != "access" {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperr.Unauthorized("Invalid token payload")
	}
	return claims, nil
}
