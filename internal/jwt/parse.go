package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("jwt: invalid token")
	ErrInvalidIssuer = errors.New("jwt: invalid issuer")
)

// Claims is the structured view of a validated access credential.
type Claims struct {
	Subject   string
	TenantID  string // "" means cross-tenant (super admin)
	Perms     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseEdDSA verifies the EdDSA signature (by kid), checks iss when
// expectedIss is non-empty, and validates exp/nbf with a small leeway.
func ParseEdDSA(token string, ks *Keystore, expectedIss string) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return ks.PublicKeyByKID(kid)
	}

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if expectedIss != "" {
		if iss, _ := mc["iss"].(string); iss != expectedIss {
			return nil, ErrInvalidIssuer
		}
	}

	out := &Claims{}
	out.Subject, _ = mc["sub"].(string)
	if out.Subject == "" {
		return nil, ErrInvalidToken
	}
	out.TenantID, _ = mc["tid"].(string)
	if raw, ok := mc["perms"].([]any); ok {
		out.Perms = make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out.Perms = append(out.Perms, s)
			}
		}
	}
	if f, ok := mc["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(f), 0)
	}
	if f, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(f), 0)
	}
	return out, nil
}
