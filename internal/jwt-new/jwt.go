package security

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims — поля ID-токена Cognito, которые использует магазин.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
}

type KeyProvider interface {
	Get(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier проверяет RS256 токены пула: подпись по kid, iss, aud = client id, exp и наличие sub.
type Verifier struct {
	keys     KeyProvider
	issuer   string
	audience string
}

func NewVerifier(keys KeyProvider, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// CognitoIssuer возвращает issuer пула пользователей.
func CognitoIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

func JWKSURL(issuer string) string {
	return issuer + "/.well-known/jwks.json"
}

func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.keys.Get(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid token: sub claim is missing")
	}
	return claims, nil
}
