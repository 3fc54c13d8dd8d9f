package discogs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
)

// OAuthConfig configures the three-legged handshake. APIURL and AuthorizeURL
// default to the public provider endpoints; tests point them elsewhere.
type OAuthConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	APIURL         string
	AuthorizeURL   string
}

// OAuth performs the delegated-authorization handshake: request token,
// user authorization, access token, then an identity lookup with the
// resulting credentials.
type OAuth struct {
	config     *oauth1.Config
	apiURL     string
	httpClient *http.Client
}

// NewOAuth creates an OAuth handshake helper.
func NewOAuth(cfg OAuthConfig) *OAuth {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	authorizeURL := cfg.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = DefaultAuthorizeURL
	}

	return &OAuth{
		config: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: apiURL + "/oauth/request_token",
				AuthorizeURL:    authorizeURL,
				AccessTokenURL:  apiURL + "/oauth/access_token",
			},
		},
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// RequestToken obtains a temporary request token and its secret. The secret
// must survive the redirect round trip; the caller stores it in a short-lived
// server-side marker.
func (o *OAuth) RequestToken() (token, secret string, err error) {
	return o.config.RequestToken()
}

// AuthorizationURL returns the provider page the user-agent is redirected to.
func (o *OAuth) AuthorizationURL(requestToken string) (string, error) {
	u, err := o.config.AuthorizationURL(requestToken)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ParseCallback extracts oauth_token and oauth_verifier from the provider's
// callback request.
func ParseCallback(r *http.Request) (requestToken, verifier string, err error) {
	return oauth1.ParseAuthorizationCallback(r)
}

// AccessToken trades the verified request token for the long-lived access
// credentials.
func (o *OAuth) AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error) {
	return o.config.AccessToken(requestToken, requestSecret, verifier)
}

// identityResponse is the provider's identity endpoint payload.
type identityResponse struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Identity fetches the username and avatar for the access credentials.
// Identity metadata is cosmetic while the credentials are load-bearing, so
// any failure here degrades to empty strings instead of aborting the login.
func (o *OAuth) Identity(ctx context.Context, accessToken, accessSecret string) (username, avatarURL string) {
	client := o.config.Client(ctx, oauth1.NewToken(accessToken, accessSecret))
	client.Timeout = o.httpClient.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiURL+"/oauth/identity", nil)
	if err != nil {
		return "", ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ""
	}

	var id identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return "", ""
	}
	return id.Username, id.AvatarURL
}
