package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recordshelf/internal/db"
	"recordshelf/internal/discogs"
	"recordshelf/internal/ledger"
	"recordshelf/internal/logging"
	"recordshelf/internal/session"
	"recordshelf/internal/sync"
)

// CatalogService is the sync engine surface the handlers call.
type CatalogService interface {
	Sync(ctx context.Context, id *session.Identity) ([]db.Record, error)
	Catalog(ctx context.Context, id *session.Identity) ([]db.Record, error)
}

// LedgerService is the play ledger surface the handlers call.
type LedgerService interface {
	ListAggregates(ctx context.Context, owner string) ([]db.PlayAggregate, error)
	RecordPlay(ctx context.Context, owner, externalID string) (db.PlayAggregate, error)
	SetPlayCount(ctx context.Context, owner, externalID string, n int) (db.PlayAggregate, error)
}

// Exchange is the OAuth handshake surface the handlers call.
type Exchange interface {
	RequestToken() (token, secret string, err error)
	AuthorizationURL(requestToken string) (string, error)
	AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error)
	Identity(ctx context.Context, accessToken, accessSecret string) (username, avatarURL string)
}

const markerCookieName = "oauth_flow"

// Handlers contains the HTTP handlers.
type Handlers struct {
	log           *slog.Logger
	exchange      Exchange
	catalog       CatalogService
	ledger        LedgerService
	pending       *pendingStore
	secret        []byte
	fallbackOwner string
}

// NewHandlers creates a Handlers instance.
func NewHandlers(log *slog.Logger, exchange Exchange, catalog CatalogService, ledgerSvc LedgerService, secret []byte, fallbackOwner string) *Handlers {
	return &Handlers{
		log:           log,
		exchange:      exchange,
		catalog:       catalog,
		ledger:        ledgerSvc,
		pending:       newPendingStore(),
		secret:        secret,
		fallbackOwner: fallbackOwner,
	}
}

// AuthStart begins the three-legged handshake (GET /auth/provider/start).
// Non-browser clients pass ?redirect=<custom-scheme-url> to receive a bearer
// token at the end instead of a cookie.
func (h *Handlers) AuthStart(w http.ResponseWriter, r *http.Request) {
	token, secret, err := h.exchange.RequestToken()
	if err != nil {
		h.log.Warn("request token step failed", "error", err)
		redirectError(w, r, "token_exchange")
		return
	}

	marker := h.pending.Put(handshake{
		RequestSecret:  secret,
		RedirectTarget: r.URL.Query().Get("redirect"),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     markerCookieName,
		Value:    marker,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(handshakeTTL.Seconds()),
	})

	authURL, err := h.exchange.AuthorizationURL(token)
	if err != nil {
		redirectError(w, r, "token_exchange")
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// AuthCallback completes the handshake (GET /auth/provider/callback).
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	requestToken, verifier, err := discogs.ParseCallback(r)
	if err != nil {
		// Discard the pending request secret along with the cookie; the
		// handshake is over on every branch.
		if cookie, cerr := r.Cookie(markerCookieName); cerr == nil {
			h.pending.Take(cookie.Value)
		}
		clearMarkerCookie(w)
		redirectError(w, r, "missing_params")
		return
	}

	cookie, err := r.Cookie(markerCookieName)
	if err != nil {
		redirectError(w, r, "session_expired")
		return
	}
	hs, ok := h.pending.Take(cookie.Value)
	clearMarkerCookie(w)
	if !ok {
		// 10-minute window elapsed, or cookies were blocked.
		redirectError(w, r, "session_expired")
		return
	}

	accessToken, accessSecret, err := h.exchange.AccessToken(requestToken, hs.RequestSecret, verifier)
	if err != nil {
		h.log.Warn("access token step failed", "error", err)
		redirectError(w, r, "token_exchange")
		return
	}
	if accessToken == "" || accessSecret == "" {
		redirectError(w, r, "missing_access_token")
		return
	}

	// Identity metadata is cosmetic; empty strings are fine.
	username, avatarURL := h.exchange.Identity(r.Context(), accessToken, accessSecret)

	h.log.Info("handshake completed",
		"username", username,
		"access_token", logging.MaskToken(accessToken))

	id := session.Identity{
		Username:          username,
		AvatarURL:         avatarURL,
		AccessToken:       accessToken,
		AccessTokenSecret: accessSecret,
	}

	if isCustomScheme(hs.RedirectTarget) {
		// The handshake was started by a non-browser client: hand the
		// credentials back as a signed bearer token.
		token := session.Sign(id, h.secret)
		http.Redirect(w, r, hs.RedirectTarget+"?token="+url.QueryEscape(token), http.StatusTemporaryRedirect)
		return
	}

	session.SetCookie(w, id, r.TLS != nil)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// AuthSession reports the current login state (GET /auth/session).
func (h *Handlers) AuthSession(w http.ResponseWriter, r *http.Request) {
	id := session.Resolve(r, h.secret)
	if id == nil {
		writeJSON(w, http.StatusOK, map[string]any{"is_logged_in": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_logged_in": true,
		"username":     id.Username,
		"avatar_url":   id.AvatarURL,
	})
}

// Logout clears the session cookie (GET /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Catalog lists the owner's catalog from the store (GET /catalog).
func (h *Handlers) Catalog(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.Catalog(r.Context(), session.Resolve(r, h.secret))
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// CatalogSync runs a full provider round trip and merge (GET /catalog/sync).
func (h *Handlers) CatalogSync(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.Sync(r.Context(), session.Resolve(r, h.secret))
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// PlaysList returns the owner's play aggregates (GET /plays).
func (h *Handlers) PlaysList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication_required")
		return
	}
	aggs, err := h.ledger.ListAggregates(r.Context(), owner)
	if err != nil {
		h.log.Error("listing play aggregates failed", "owner", owner, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTOs(aggs))
}

// PlaysRecord appends one play event (POST /plays).
func (h *Handlers) PlaysRecord(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication_required")
		return
	}

	var in playRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_json")
		return
	}

	agg, err := h.ledger.RecordPlay(r.Context(), owner, in.ExternalID)
	if err != nil {
		h.writeLedgerError(w, owner, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

// PlaysSet reconciles an item's play count (PATCH /plays).
func (h *Handlers) PlaysSet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication_required")
		return
	}

	var in playRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_json")
		return
	}

	agg, err := h.ledger.SetPlayCount(r.Context(), owner, in.ExternalID, coerceCount(in.Count))
	if err != nil {
		h.writeLedgerError(w, owner, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

func (h *Handlers) owner(r *http.Request) (string, bool) {
	return session.OwnerKey(session.Resolve(r, h.secret), h.fallbackOwner)
}

func (h *Handlers) writeCatalogError(w http.ResponseWriter, err error) {
	var statusErr *discogs.StatusError
	var urlErr *url.Error
	switch {
	case errors.Is(err, sync.ErrNoOwner):
		errorJSON(w, http.StatusUnauthorized, "authentication_required")
	case errors.As(err, &statusErr):
		errorJSON(w, statusErr.StatusCode, "provider_error")
	case errors.As(err, &urlErr):
		errorJSON(w, http.StatusBadGateway, "provider_unreachable")
	default:
		h.log.Error("catalog operation failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal_error")
	}
}

func (h *Handlers) writeLedgerError(w http.ResponseWriter, owner string, err error) {
	if errors.Is(err, ledger.ErrMissingExternalID) {
		errorJSON(w, http.StatusBadRequest, "missing_external_id")
		return
	}
	h.log.Error("ledger operation failed", "owner", owner, "error", err)
	errorJSON(w, http.StatusInternalServerError, "internal_error")
}

// playRequest is the POST/PATCH /plays body. Count is loosely typed: clients
// send numbers or strings and anything non-numeric becomes 0.
type playRequest struct {
	ExternalID string `json:"external_id"`
	Count      any    `json:"count"`
}

func coerceCount(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// recordDTO is the JSON shape of one catalog item.
type recordDTO struct {
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	CoverURL   string    `json:"cover_url"`
	AddedAt    time.Time `json:"added_at"`
	Genres     []string  `json:"genres"`
	Styles     []string  `json:"styles"`
	Year       *int      `json:"year"`
	Label      *string   `json:"label"`
	Format     *string   `json:"format"`
}

func toRecordDTOs(records []db.Record) []recordDTO {
	out := make([]recordDTO, len(records))
	for i, rec := range records {
		out[i] = recordDTO{
			ExternalID: rec.ExternalID,
			Title:      rec.Title,
			Artist:     rec.Artist,
			CoverURL:   rec.CoverURL,
			AddedAt:    rec.AddedAt,
			Genres:     rec.Genres,
			Styles:     rec.Styles,
			Year:       rec.Year,
			Label:      rec.Label,
			Format:     rec.Format,
		}
	}
	return out
}

// aggregateDTO is the JSON shape of one play aggregate.
type aggregateDTO struct {
	ExternalID string     `json:"external_id"`
	PlayCount  int        `json:"play_count"`
	LastPlayed *time.Time `json:"last_played"`
}

func toAggregateDTO(agg db.PlayAggregate) aggregateDTO {
	return aggregateDTO{
		ExternalID: agg.ExternalID,
		PlayCount:  agg.PlayCount,
		LastPlayed: agg.LastPlayed,
	}
}

func toAggregateDTOs(aggs []db.PlayAggregate) []aggregateDTO {
	out := make([]aggregateDTO, len(aggs))
	for i, agg := range aggs {
		out[i] = toAggregateDTO(agg)
	}
	return out
}

// isCustomScheme reports whether the redirect target uses a non-http(s)
// scheme, which marks the handshake as started by a non-browser client.
func isCustomScheme(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https"
}

func redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?auth_error="+url.QueryEscape(code), http.StatusTemporaryRedirect)
}

func clearMarkerCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     markerCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
