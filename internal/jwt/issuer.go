// Package jwt issues and validates EdDSA-signed access credentials.
package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer signs access tokens with the active key of the keystore.
type Issuer struct {
	Iss       string    // "iss" claim
	Keys      *Keystore // signing keys
	AccessTTL time.Duration
}

func NewIssuer(iss string, ks *Keystore, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Issuer{Iss: iss, Keys: ks, AccessTTL: accessTTL}
}

// IssueAccess mints an access token for a subject. tid carries the tenant id
// ("" for a cross-tenant principal) and perms is the permission snapshot the
// credential is issued with. The snapshot stays authoritative for the life
// of the token.
func (i *Issuer) IssueAccess(sub, tid string, perms []string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	kid, priv, _ := i.Keys.Active()

	claims := jwtv5.MapClaims{
		"iss":   i.Iss,
		"sub":   sub,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   exp.Unix(),
		"tid":   tid,
		"perms": perms,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
