package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// claims is the bearer token payload. IssuedAt is recorded but not enforced:
// tokens have no hard expiry, and adding one silently would strand
// non-browser clients that have no refresh path.
type claims struct {
	Username          string `json:"u"`
	AvatarURL         string `json:"a"`
	AccessToken       string `json:"t"`
	AccessTokenSecret string `json:"s"`
	IssuedAt          int64  `json:"iat"`
}

// Sign issues a bearer token for an identity: base64url(JSON claims) joined
// by "." with base64url(HMAC-SHA256 over the payload segment).
func Sign(id Identity, secret []byte) string {
	raw, _ := json.Marshal(claims{
		Username:          id.Username,
		AvatarURL:         id.AvatarURL,
		AccessToken:       id.AccessToken,
		AccessTokenSecret: id.AccessTokenSecret,
		IssuedAt:          time.Now().Unix(),
	})
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + sign(payload, secret)
}

// Verify checks a bearer token and recovers its identity. Any decode or
// parse failure, a signature mismatch, or a missing username/token/secret
// claim yields (zero, false).
func Verify(token string, secret []byte) (Identity, bool) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok {
		return Identity{}, false
	}

	// Recompute over the literal payload segment and compare in constant
	// time on the raw bytes. Strict decoding rejects non-canonical
	// encodings, so no two distinct signature strings verify as equal.
	got, err := base64.RawURLEncoding.Strict().DecodeString(signature)
	if err != nil {
		return Identity{}, false
	}
	want := hmacSum(payload, secret)
	if !hmac.Equal(got, want) {
		return Identity{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Identity{}, false
	}
	var c claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Identity{}, false
	}
	if c.Username == "" || c.AccessToken == "" || c.AccessTokenSecret == "" {
		return Identity{}, false
	}

	return Identity{
		Username:          c.Username,
		AvatarURL:         c.AvatarURL,
		AccessToken:       c.AccessToken,
		AccessTokenSecret: c.AccessTokenSecret,
	}, true
}

func sign(payload string, secret []byte) string {
	return base64.RawURLEncoding.EncodeToString(hmacSum(payload, secret))
}

func hmacSum(payload string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
