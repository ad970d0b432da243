package auth

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type sessionClaims struct {
	UserID string `json:"uid,omitempty"`
	jwt.StandardClaims
}

type issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an HS256 session token issuer.
func NewIssuer(secret string, ttl time.Duration) Issuer {
	return &issuer{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *issuer) Issue(sessionID, userID string) (string, time.Time, error) {
	now := i.now()
	expirationTime := now.Add(i.ttl)
	claims := &sessionClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expirationTime, nil
}

func (i *issuer) Parse(tokenString string) (*Claims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil || !token.Valid || claims.Id == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{
		SessionID: claims.Id,
		UserID:    claims.UserID,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
