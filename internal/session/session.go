// Package session resolves and issues request identities.
//
// An identity reaches the server through one of two carriers: a signed bearer
// token (non-browser clients) or the session cookie (web clients). Both
// resolve silently — a malformed or unsigned credential yields no identity,
// never an error, and callers branch on absence.
package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	cookieName = "shelf_session"
	cookieTTL  = 30 * 24 * time.Hour
)

// Identity is the verified (username, avatar, provider credentials) tuple for
// one request. It is never persisted server-side as a structured record.
type Identity struct {
	Username          string
	AvatarURL         string
	AccessToken       string
	AccessTokenSecret string
}

// cookiePayload is the decoded content of the session cookie.
type cookiePayload struct {
	Username          string `json:"username"`
	AvatarURL         string `json:"avatar_url"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
}

// Resolve recovers the identity carried by the request, or nil.
//
// The bearer header is checked before the cookie: a bearer caller is a
// non-browser client that may have no cookie storage at all. An invalid
// bearer falls through to the cookie carrier.
func Resolve(r *http.Request, secret []byte) *Identity {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if id, ok := Verify(strings.TrimPrefix(auth, "Bearer "), secret); ok {
			return &id
		}
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}
	return decodeCookie(cookie.Value)
}

// SetCookie issues the web session cookie for an identity. Secure is set when
// the request arrived over TLS.
func SetCookie(w http.ResponseWriter, id Identity, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encodeCookie(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(cookieTTL.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// OwnerKey resolves the tenant key all store operations are scoped to: the
// authenticated username, or the configured fallback owner, in that order.
// The second return is false when neither is available.
func OwnerKey(id *Identity, fallback string) (string, bool) {
	if id != nil && id.Username != "" {
		return id.Username, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}

func encodeCookie(id Identity) string {
	raw, _ := json.Marshal(cookiePayload{
		Username:          id.Username,
		AvatarURL:         id.AvatarURL,
		AccessToken:       id.AccessToken,
		AccessTokenSecret: id.AccessTokenSecret,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCookie parses a cookie value, returning nil on any malformation or
// missing required field.
func decodeCookie(value string) *Identity {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var p cookiePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if p.Username == "" || p.AccessToken == "" || p.AccessTokenSecret == "" {
		return nil
	}
	return &Identity{
		Username:          p.Username,
		AvatarURL:         p.AvatarURL,
		AccessToken:       p.AccessToken,
		AccessTokenSecret: p.AccessTokenSecret,
	}
}
