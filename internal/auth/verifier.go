// Package auth provides bearer-token verification for the API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Verifier validates bearer tokens and extracts tenant/role claims.
// Modes: dev (token is "tenant:role", no crypto) and hmac (HS256 JWT).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	TenantClaim string
	RoleClaim   string
}

type Principal struct {
	Tenant string
	Role   string
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(os.Getenv("AUTH_HMAC_SECRET")),
		TenantClaim: envOr("AUTH_TENANT_CLAIM", "tenant"),
		RoleClaim:   envOr("AUTH_ROLE_CLAIM", "role"),
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		tenant, role, ok := strings.Cut(token, ":")
		if !ok || tenant == "" {
			return Principal{}, errors.New("invalid dev token; expected tenant:role")
		}
		return Principal{Tenant: tenant, Role: role}, nil
	}

	claims, err := v.verifyHS256(token)
	if err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	tenant, _ := claims[v.TenantClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("missing %q claim", v.TenantClaim)
	}
	role, _ := claims[v.RoleClaim].(string)
	return Principal{Tenant: tenant, Role: role}, nil
}

// verifyHS256 checks the token's signature and returns its claims. Only
// HS256 is accepted; anything else in the alg header is rejected outright.
func (v *Verifier) verifyHS256(token string) (map[string]any, error) {
	head, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, errors.New("invalid JWT")
	}
	payload, sigPart, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sigPart, ".") {
		return nil, errors.New("invalid JWT")
	}

	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(head, &hdr); err != nil {
		return nil, err
	}
	if hdr.Alg != "HS256" {
		return nil, fmt.Errorf("unsupported alg %q", hdr.Alg)
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(head + "." + payload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return nil, errors.New("bad signature")
	}

	var claims map[string]any
	if err := decodeSegment(payload, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func decodeSegment(seg string, out any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
