// Package utils holds the staff token helpers shared by the server
// middleware and floorctl.
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Staff roles carried in the "role" claim.
const (
	RoleStaff   = "STAFF"
	RoleKitchen = "KITCHEN"
	RoleManager = "MANAGER"
)

// ValidRole reports whether role is one of the known staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStaff, RoleKitchen, RoleManager:
		return true
	}
	return false
}

// StaffClaims are the claims of a floor access token.  The subject is
// the staff member id.
type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken is a signed token with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 token for staffID with the given role.
// Tokens are issued by the identity service in production; the floor
// server only verifies them.
func NewAccessToken(secret string, staffID uint64, role string, ttl time.Duration) (AccessToken, error) {
	if !ValidRole(role) {
		return AccessToken{}, fmt.Errorf("unknown role %q", role)
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(staffID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns its claims.
// Only HMAC signatures are accepted.
func ParseAccessToken(secret, raw string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, errors.New("token lacks subject or role")
	}
	return claims, nil
}
