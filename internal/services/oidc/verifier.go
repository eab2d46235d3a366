package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier verifies bearer tokens against one issuer's JWKS
type Verifier struct {
	jwks     *JWKSManager
	jwksURL  string
	issuer   string
	audience string
}

// NewVerifier creates a new JWT verifier. An empty audience skips the aud check.
func NewVerifier(jwks *JWKSManager, jwksURL, issuer, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify checks the token signature, expiry, issuer and audience and returns the caller's identity
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.Identity, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	if kid := keyID(tokenString); kid != "" {
		if _, found := keys.LookupKeyID(kid); !found {
			// the issuer may have rotated since the last fetch
			if keys, err = v.jwks.Refresh(ctx, v.jwksURL); err != nil {
				return nil, err
			}
		}
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(keys), jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, errors.New("token missing subject claim")
	}

	id := &models.Identity{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		ExpiresAt: token.Expiration(),
		Email:     stringClaim(token, "email"),
		Name:      stringClaim(token, "name"),
	}
	if aud := token.Audience(); len(aud) > 0 {
		id.Audience = aud[0]
	}

	return id, nil
}

// keyID reads the kid header without verifying anything
func keyID(tokenString string) string {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
