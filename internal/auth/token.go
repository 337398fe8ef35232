package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims mirrors the access token payload issued by the external auth
// service.
type Claims struct {
	UserID         int64    `json:"uid"`
	Email          string   `json:"email"`
	OrganizationID int64    `json:"org"`
	Permissions    []string `json:"perms"`
	jwt.RegisteredClaims
}

// Verifier validates RS256 access tokens against the auth service's public
// key. It never issues tokens.
type Verifier struct {
	publicKey *rsa.PublicKey
}

func NewVerifier(publicKeyPEM string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	return &Verifier{publicKey: key}, nil
}

// Verify parses and validates a token string, returning the authenticated
// user on success.
func (v *Verifier) Verify(tokenString string) (*User, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return &User{
		ID:             claims.UserID,
		Email:          claims.Email,
		OrganizationID: claims.OrganizationID,
		Permissions:    claims.Permissions,
	}, nil
}
