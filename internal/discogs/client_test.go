package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		apiURL:     url,
	}
}

func page(pages int, releases ...map[string]any) map[string]any {
	return map[string]any{
		"pagination": map[string]any{"pages": pages},
		"releases":   releases,
	}
}

func release(id int, title string) map[string]any {
	return map[string]any{
		"id":         id,
		"date_added": "2022-03-01T10:00:00Z",
		"basic_information": map[string]any{
			"id":          id,
			"title":       title,
			"year":        1977,
			"cover_image": "https://img.example/cover.jpg",
			"artists":     []map[string]any{{"name": "First Artist"}, {"name": "Second Artist"}},
			"labels":      []map[string]any{{"name": "First Label"}, {"name": "Second Label"}},
			"formats":     []map[string]any{{"name": "Vinyl"}, {"name": "CD"}},
			"genres":      []string{"Rock"},
			"styles":      []string{"Punk", "Garage"},
		},
	}
}

func TestReleasesPaginates(t *testing.T) {
	var requestedPages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, p)

		if got := r.URL.Query().Get("sort"); got != "added" {
			t.Errorf("sort = %q, want added", got)
		}
		if got := r.URL.Query().Get("sort_order"); got != "desc" {
			t.Errorf("sort_order = %q, want desc", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if p == "1" {
			json.NewEncoder(w).Encode(page(2, release(100, "A"), release(101, "B")))
		} else {
			json.NewEncoder(w).Encode(page(2, release(102, "C")))
		}
	}))
	defer server.Close()

	releases, err := testClient(server.URL).Releases(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Releases: %v", err)
	}

	if len(releases) != 3 {
		t.Fatalf("got %d releases, want 3", len(releases))
	}
	if len(requestedPages) != 2 || requestedPages[0] != "1" || requestedPages[1] != "2" {
		t.Errorf("requested pages %v, want [1 2]", requestedPages)
	}
	if releases[2].ExternalID != "102" {
		t.Errorf("ExternalID = %q, want coerced string \"102\"", releases[2].ExternalID)
	}
}

func TestReleasesAbortsWholeFetchOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(page(3, release(100, "A")))
			return
		}
		// Second page fails: the first page's data must be discarded too.
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	releases, err := testClient(server.URL).Releases(context.Background(), "alice")
	if releases != nil {
		t.Errorf("got %d releases, want none on a mid-pagination failure", len(releases))
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestReleasesUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Releases(context.Background(), "alice")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want StatusError 401", err)
	}
}

func TestConvertRelease(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want func(t *testing.T, rel Release)
	}{
		{
			name: "first of each array wins",
			raw:  release(100, "Damaged"),
			want: func(t *testing.T, rel Release) {
				if rel.Artist != "First Artist" {
					t.Errorf("Artist = %q", rel.Artist)
				}
				if rel.Label == nil || *rel.Label != "First Label" {
					t.Errorf("Label = %v", rel.Label)
				}
				if rel.Format == nil || *rel.Format != "Vinyl" {
					t.Errorf("Format = %v", rel.Format)
				}
				if rel.Year == nil || *rel.Year != 1977 {
					t.Errorf("Year = %v", rel.Year)
				}
			},
		},
		{
			name: "missing lists default to empty, zero year is nil",
			raw: map[string]any{
				"id":         7,
				"date_added": "2022-03-01T10:00:00Z",
				"basic_information": map[string]any{
					"id":    7,
					"title": "Untitled",
				},
			},
			want: func(t *testing.T, rel Release) {
				if rel.Genres == nil || len(rel.Genres) != 0 {
					t.Errorf("Genres = %#v, want empty slice", rel.Genres)
				}
				if rel.Styles == nil || len(rel.Styles) != 0 {
					t.Errorf("Styles = %#v, want empty slice", rel.Styles)
				}
				if rel.Year != nil {
					t.Errorf("Year = %v, want nil", rel.Year)
				}
				if rel.Label != nil || rel.Format != nil {
					t.Error("Label/Format should be nil when absent")
				}
				if rel.ExternalID != "7" {
					t.Errorf("ExternalID = %q", rel.ExternalID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, _ := json.Marshal(tt.raw)
			var raw rawRelease
			if err := json.Unmarshal(blob, &raw); err != nil {
				t.Fatal(err)
			}
			tt.want(t, convertRelease(raw))
		})
	}
}

func TestConvertReleaseDateAdded(t *testing.T) {
	blob, _ := json.Marshal(release(100, "A"))
	var raw rawRelease
	if err := json.Unmarshal(blob, &raw); err != nil {
		t.Fatal(err)
	}
	rel := convertRelease(raw)

	want := time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)
	if !rel.DateAdded.Equal(want) {
		t.Errorf("DateAdded = %v, want %v", rel.DateAdded, want)
	}
}

func TestClientFactorySigning(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page(1))
	}))
	defer server.Close()

	factory := NewClientFactory(FactoryConfig{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		PersonalToken:  "personal-token",
		APIURL:         server.URL,
	})

	t.Run("delegated credentials sign with oauth", func(t *testing.T) {
		client := factory.ClientFor(context.Background(), "at", "as")
		if _, err := client.Releases(context.Background(), "alice"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(gotAuth, "OAuth") {
			t.Errorf("Authorization = %q, want an OAuth signature", gotAuth)
		}
	})

	t.Run("falls back to personal token", func(t *testing.T) {
		client := factory.ClientFor(context.Background(), "", "")
		if _, err := client.Releases(context.Background(), "alice"); err != nil {
			t.Fatal(err)
		}
		if gotAuth != "Discogs token=personal-token" {
			t.Errorf("Authorization = %q, want the personal token header", gotAuth)
		}
	})

	t.Run("unauthenticated without any credentials", func(t *testing.T) {
		bare := NewClientFactory(FactoryConfig{APIURL: server.URL})
		client := bare.ClientFor(context.Background(), "", "")
		if _, err := client.Releases(context.Background(), "alice"); err != nil {
			t.Fatal(err)
		}
		if gotAuth != "" {
			t.Errorf("Authorization = %q, want empty", gotAuth)
		}
	})
}
