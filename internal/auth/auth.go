package auth

import (
	"context"
	"errors"
	"os"
	"strings"
)

var ErrNoCredential = errors.New("no_credential")

// Resolver returns the current bearer credential. It is called before every
// dial and request, so a refreshed credential is picked up without restarting.
type Resolver interface {
	Credential(ctx context.Context) (string, error)
}

type ResolverFunc func(ctx context.Context) (string, error)

func (f ResolverFunc) Credential(ctx context.Context) (string, error) { return f(ctx) }

type Static string

func (s Static) Credential(context.Context) (string, error) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return "", ErrNoCredential
	}
	return v, nil
}

// File re-reads the token file on each call.
type File string

func (f File) Credential(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", ErrNoCredential
	}
	return v, nil
}

// FromConfig prefers a token file over a literal token. With neither, requests
// go out anonymously.
func FromConfig(token, tokenFile string) Resolver {
	if strings.TrimSpace(tokenFile) != "" {
		return File(tokenFile)
	}
	if strings.TrimSpace(token) != "" {
		return Static(token)
	}
	return Anonymous{}
}

type Anonymous struct{}

func (Anonymous) Credential(context.Context) (string, error) { return "", nil }

// BearerHeader formats a credential for the Authorization header.
func BearerHeader(credential string) string {
	if credential == "" {
		return ""
	}
	return "Bearer " + credential
}
