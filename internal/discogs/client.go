package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
)

// Client fetches a user's collection from the provider.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// ClientFactory builds catalog clients with the strongest available signing:
// delegated OAuth 1.0a credentials, then the configured personal token, then
// unauthenticated (expected to be rejected upstream for private catalogs).
type ClientFactory struct {
	oauthConfig   *oauth1.Config
	apiURL        string
	personalToken string
}

// FactoryConfig configures a ClientFactory.
type FactoryConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	PersonalToken  string
	APIURL         string
}

// NewClientFactory creates a ClientFactory.
func NewClientFactory(cfg FactoryConfig) *ClientFactory {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &ClientFactory{
		oauthConfig: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
		},
		apiURL:        apiURL,
		personalToken: cfg.PersonalToken,
	}
}

// ClientFor returns a catalog client signing with the given delegated
// credentials when both are present.
func (f *ClientFactory) ClientFor(ctx context.Context, accessToken, accessSecret string) *Client {
	if accessToken != "" && accessSecret != "" {
		hc := f.oauthConfig.Client(ctx, oauth1.NewToken(accessToken, accessSecret))
		hc.Timeout = 30 * time.Second
		return &Client{httpClient: hc, apiURL: f.apiURL}
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	if f.personalToken != "" {
		hc.Transport = &tokenTransport{token: f.personalToken, base: http.DefaultTransport}
	}
	return &Client{httpClient: hc, apiURL: f.apiURL}
}

// tokenTransport signs requests with a static personal access token.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Discogs token="+t.token)
	return t.base.RoundTrip(clone)
}

// releasesPage is the provider's collection listing envelope.
type releasesPage struct {
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"pagination"`
	Releases []rawRelease `json:"releases"`
}

type rawRelease struct {
	ID               int64  `json:"id"`
	DateAdded        string `json:"date_added"`
	BasicInformation struct {
		ID         int64      `json:"id"`
		Title      string     `json:"title"`
		Year       int        `json:"year"`
		CoverImage string     `json:"cover_image"`
		Artists    []rawNamed `json:"artists"`
		Labels     []rawNamed `json:"labels"`
		Formats    []rawNamed `json:"formats"`
		Genres     []string   `json:"genres"`
		Styles     []string   `json:"styles"`
	} `json:"basic_information"`
}

type rawNamed struct {
	Name string `json:"name"`
}

// Releases fetches the user's entire collection, newest additions first.
// Every page must succeed: any non-success status aborts the whole fetch with
// a StatusError and nothing fetched so far is returned.
func (c *Client) Releases(ctx context.Context, username string) ([]Release, error) {
	var releases []Release

	page, pages := 1, 1
	for page <= pages {
		env, err := c.fetchPage(ctx, username, page)
		if err != nil {
			return nil, err
		}

		for _, raw := range env.Releases {
			releases = append(releases, convertRelease(raw))
		}

		if env.Pagination.Pages > 0 {
			pages = env.Pagination.Pages
		}
		page++
	}

	return releases, nil
}

func (c *Client) fetchPage(ctx context.Context, username string, page int) (*releasesPage, error) {
	endpoint := fmt.Sprintf("%s/users/%s/collection/folders/0/releases", c.apiURL, url.PathEscape(username))

	params := url.Values{
		"page":       {strconv.Itoa(page)},
		"per_page":   {strconv.Itoa(pageSize)},
		"sort":       {"added"},
		"sort_order": {"desc"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building collection request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching collection page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var env releasesPage
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding collection page %d: %w", page, err)
	}
	return &env, nil
}

// convertRelease normalizes one raw listing entry: first artist, label and
// format win, missing genre/style lists become empty slices, and the numeric
// release id is coerced to a string.
func convertRelease(raw rawRelease) Release {
	info := raw.BasicInformation

	id := info.ID
	if id == 0 {
		id = raw.ID
	}

	rel := Release{
		ExternalID: strconv.FormatInt(id, 10),
		Title:      info.Title,
		Artist:     firstName(info.Artists),
		CoverURL:   info.CoverImage,
		Genres:     info.Genres,
		Styles:     info.Styles,
	}
	if rel.Genres == nil {
		rel.Genres = []string{}
	}
	if rel.Styles == nil {
		rel.Styles = []string{}
	}

	if info.Year > 0 {
		year := info.Year
		rel.Year = &year
	}
	if label := firstName(info.Labels); label != "" {
		rel.Label = &label
	}
	if format := firstName(info.Formats); format != "" {
		rel.Format = &format
	}

	// Provider timestamps are RFC3339; zero value on failure.
	rel.DateAdded, _ = time.Parse(time.RFC3339, raw.DateAdded)

	return rel
}

func firstName(named []rawNamed) string {
	if len(named) == 0 {
		return ""
	}
	return named[0].Name
}
