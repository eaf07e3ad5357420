package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
)

var (
	ErrEmptySecret  = errors.New("empty auth secret")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier decides whether a bearer token grants access.
type Verifier interface {
	Verify(token string) error
}

// StaticTokenVerifier accepts exactly one shared token.
type StaticTokenVerifier struct {
	secret []byte
}

func NewStaticTokenVerifier(secret string) (*StaticTokenVerifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &StaticTokenVerifier{secret: []byte(secret)}, nil
}

func (v *StaticTokenVerifier) Verify(token string) error {
	if subtle.ConstantTimeCompare([]byte(token), v.secret) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// JWTVerifier accepts HS256 JWTs signed with a local symmetric key
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &JWTVerifier{secret: secret}, nil
}

func (v *JWTVerifier) Verify(token string) error {
	_, err := jwt.Parse(
		[]byte(token),
		jwt.WithValidate(true),
		jwt.WithVerify(jwa.HS256, v.secret),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// AnyOf accepts a token if at least one verifier does.
type AnyOf []Verifier

func (a AnyOf) Verify(token string) error {
	for _, v := range a {
		if err := v.Verify(token); err == nil {
			return nil
		}
	}
	return ErrInvalidToken
}
