// Package discogs is the client for the external catalog provider: the
// OAuth 1.0a handshake and the paginated collection listing.
package discogs

import (
	"fmt"
	"time"
)

const (
	// DefaultAPIURL is the provider's REST API origin.
	DefaultAPIURL = "https://api.discogs.com"

	// DefaultAuthorizeURL is where the user-agent is sent to approve access.
	DefaultAuthorizeURL = "https://www.discogs.com/oauth/authorize"

	userAgent = "recordshelf/1.0"
	pageSize  = 100
)

// StatusError reports a non-success provider response so callers can
// propagate the upstream status code.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

// Release is one normalized item from the provider's collection listing.
type Release struct {
	ExternalID string
	Title      string
	Artist     string
	CoverURL   string
	Year       *int
	Label      *string
	Format     *string
	Genres     []string
	Styles     []string
	DateAdded  time.Time
}
