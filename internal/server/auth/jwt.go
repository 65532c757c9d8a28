// Package auth issues and validates the signed tokens of the service.
//
// Two token kinds share one signing key: share tokens are minted by the
// verify flow and scoped to a single share code, session tokens belong to
// the primary login and guard the admin API. The Kind claim keeps them
// apart, so one can never stand in for the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

type Kind string

const (
	KindShare   Kind = "share"
	KindSession Kind = "session"
)

// Claims are the registered claims plus the kind discriminator and the
// kind-specific payload.
type Claims struct {
	jwt.RegisteredClaims
	Kind      Kind   `json:"kind"`
	ShareCode string `json:"share_code,omitempty"`
	ShareID   string `json:"share_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ShareClaims is the validated payload of a share token.
type ShareClaims struct {
	ShareCode string
	ShareID   string
	ExpiresAt time.Time
}

// now is a seam for tests.
var now = time.Now

func sign(c Claims, secretKey []byte, validity time.Duration) (string, error) {
	issued := now()
	c.IssuedAt = jwt.NewNumericDate(issued)
	c.ExpiresAt = jwt.NewNumericDate(issued.Add(validity))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// IssueShareToken mints a token that grants read access to one share.
func IssueShareToken(shareCode, shareID string, secretKey []byte, validity time.Duration) (string, error) {
	return sign(Claims{Kind: KindShare, ShareCode: shareCode, ShareID: shareID}, secretKey, validity)
}

// IssueSessionToken mints a primary session token. The service itself only
// validates these; issuing lives here for tooling and tests.
func IssueSessionToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	return sign(Claims{Kind: KindSession, UserID: userID}, secretKey, validity)
}

func parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ValidateShareToken checks signature, expiry, kind and that the token was
// issued for pathCode.
func ValidateShareToken(tokenString string, secretKey []byte, pathCode string) (*ShareClaims, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return nil, err
	}

	if claims.Kind != KindShare {
		return nil, common.ErrTokenKindMismatch
	}

	if claims.ShareCode == "" || claims.ShareCode != pathCode {
		return nil, common.ErrTokenScopeMismatch
	}

	return &ShareClaims{
		ShareCode: claims.ShareCode,
		ShareID:   claims.ShareID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ValidateSessionToken returns the user id of a valid primary session token.
func ValidateSessionToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return "", err
	}

	if claims.Kind != KindSession {
		return "", common.ErrTokenKindMismatch
	}

	if claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
