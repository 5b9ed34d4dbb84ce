// Package auth checks the one-time endpoint token presented in a hello.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates a presented endpoint token.
type Validator interface {
	Validate(token string) error
}

// EndpointToken accepts exactly the token minted with an endpoint.
type EndpointToken struct {
	Token string
}

func (e EndpointToken) Validate(token string) error {
	if strings.TrimSpace(e.Token) == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(e.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
