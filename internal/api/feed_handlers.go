package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/feed"
	"github.com/metricshour/metricshour/internal/follow"
	"github.com/metricshour/metricshour/internal/interaction"
	"github.com/metricshour/metricshour/internal/middleware"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// CountryHeader carries the visitor's ISO country code, set by the CDN edge.
const CountryHeader = "CF-IPCountry"

// FeedRanker ranks one page of the feed.
type FeedRanker interface {
	Rank(ctx context.Context, req feed.Request) ([]content.Item, error)
	Config() feed.Config
}

// ItemLookup checks that a feed item exists.
type ItemLookup interface {
	GetByID(ctx context.Context, id int64) (*content.Item, error)
}

// FeedHandlers serves the feed, interaction and follow endpoints.
type FeedHandlers struct {
	ranker       FeedRanker
	items        ItemLookup
	follows      follow.Repository
	interactions interaction.Repository
	countries    content.CountryDirectory
	logger       *slog.Logger
	now          func() time.Time
}

// FeedHandlersConfig lists the dependencies of FeedHandlers. Countries may be
// nil, which disables the geo signal.
type FeedHandlersConfig struct {
	Ranker       FeedRanker
	Items        ItemLookup
	Follows      follow.Repository
	Interactions interaction.Repository
	Countries    content.CountryDirectory
	Logger       *slog.Logger
}

// NewFeedHandlers creates the feed handlers.
func NewFeedHandlers(cfg FeedHandlersConfig) *FeedHandlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{
		ranker:       cfg.Ranker,
		items:        cfg.Items,
		follows:      cfg.Follows,
		interactions: cfg.Interactions,
		countries:    cfg.Countries,
		logger:       logger,
		now:          time.Now,
	}
}

// FeedPageResponse is the body of GET /api/feed.
type FeedPageResponse struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Events   []content.Item `json:"events"`
}

// intQuery parses an integer query parameter, returning def when absent.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// GetFeed handles GET /api/feed.
// Anonymous callers get recency, importance and geo ranking; authenticated
// callers also get follow and interaction signals.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil || page < 1 {
		writeCode(w, r, ErrCodeValidation, "page must be an integer >= 1")
		return
	}
	pageSize, err := intQuery(r, "page_size", feed.DefaultPageSize)
	if err != nil {
		writeCode(w, r, ErrCodeValidation, "page_size must be an integer")
		return
	}

	req := feed.Request{
		Page:         page,
		PageSize:     pageSize,
		Now:          h.now(),
		GeoCountryID: h.geoCountry(r),
	}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		req.UserID = &userID
	}

	events, err := h.ranker.Rank(r.Context(), req)
	if err != nil {
		if errors.Is(err, feed.ErrInvalidPage) {
			writeCode(w, r, ErrCodeValidation, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to rank feed", "error", err)
		writeCode(w, r, ErrCodeInternal, "Failed to load feed")
		return
	}

	writeJSON(w, r, http.StatusOK, FeedPageResponse{
		Page:     page,
		PageSize: feed.ClampPageSize(pageSize, h.ranker.Config().MaxPageSize),
		Events:   events,
	})
}

// geoCountry resolves the visitor's country from the edge header. Lookup
// failures only drop the geo signal.
func (h *FeedHandlers) geoCountry(r *http.Request) *int64 {
	if h.countries == nil {
		return nil
	}
	code := content.NormalizeCountryCode(r.Header.Get(CountryHeader))
	if code == "" {
		return nil
	}
	id, found, err := h.countries.ResolveCountry(r.Context(), code)
	if err != nil {
		h.logger.WarnContext(r.Context(), "country lookup failed, ignoring geo signal",
			"country_code", code, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return &id
}

// InteractRequest is the body of POST /api/feed/{id}/interact.
type InteractRequest struct {
	InteractionType string `json:"interaction_type"`
	DwellSeconds    *int   `json:"dwell_seconds"`
}

// RecordInteraction handles POST /api/feed/{id}/interact. Only the most
// recent interaction per user and item is kept.
func (h *FeedHandlers) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || itemID <= 0 {
		writeCode(w, r, ErrCodeValidation, "feed event id must be a positive integer")
		return
	}

	var body InteractRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeCode(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	rec := interaction.Interaction{
		UserID:       userID,
		ItemID:       itemID,
		Kind:         interaction.Kind(body.InteractionType),
		DwellSeconds: body.DwellSeconds,
		CreatedAt:    h.now().UTC(),
	}
	if err := rec.Validate(); err != nil {
		writeCode(w, r, ErrCodeValidation, err.Error())
		return
	}

	if _, err := h.items.GetByID(r.Context(), itemID); err != nil {
		if errors.Is(err, content.ErrItemNotFound) {
			writeCode(w, r, ErrCodeNotFound, "Feed event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load feed event", "error", err, "item_id", itemID)
		writeCode(w, r, ErrCodeInternal, "Failed to record interaction")
		return
	}

	if err := h.interactions.Upsert(r.Context(), &rec); err != nil {
		// The item can be deleted between the lookup and the upsert.
		if errors.Is(err, interaction.ErrItemNotFound) {
			writeCode(w, r, ErrCodeNotFound, "Feed event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to record interaction", "error", err, "item_id", itemID)
		writeCode(w, r, ErrCodeInternal, "Failed to record interaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFollows handles GET /api/feed/follows, newest first.
func (h *FeedHandlers) ListFollows(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	follows, err := h.follows.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list follows", "error", err)
		writeCode(w, r, ErrCodeInternal, "Failed to list follows")
		return
	}
	if follows == nil {
		follows = []follow.Follow{}
	}
	writeJSON(w, r, http.StatusOK, follows)
}

// FollowRequest is the body of POST /api/feed/follows.
type FollowRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
}

// AddFollow handles POST /api/feed/follows. Following twice returns the
// existing follow.
func (h *FeedHandlers) AddFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var body FollowRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeCode(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	kind, err := follow.ParseEntityKind(body.EntityType)
	if err != nil {
		writeCode(w, r, ErrCodeValidation, err.Error())
		return
	}
	if body.EntityID <= 0 {
		writeCode(w, r, ErrCodeValidation, "entity_id must be a positive integer")
		return
	}

	f, _, err := h.follows.Add(r.Context(), userID, kind, body.EntityID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to add follow", "error", err)
		writeCode(w, r, ErrCodeInternal, "Failed to add follow")
		return
	}
	writeJSON(w, r, http.StatusCreated, f)
}

// RemoveFollow handles DELETE /api/feed/follows/{entity_type}/{entity_id}.
func (h *FeedHandlers) RemoveFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	kind, err := follow.ParseEntityKind(r.PathValue("entity_type"))
	if err != nil {
		writeCode(w, r, ErrCodeValidation, err.Error())
		return
	}
	entityID, err := strconv.ParseInt(r.PathValue("entity_id"), 10, 64)
	if err != nil || entityID <= 0 {
		writeCode(w, r, ErrCodeValidation, "entity_id must be a positive integer")
		return
	}

	if err := h.follows.Remove(r.Context(), userID, kind, entityID); err != nil {
		if errors.Is(err, follow.ErrFollowNotFound) {
			writeCode(w, r, ErrCodeNotFound, "Follow not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to remove follow", "error", err)
		writeCode(w, r, ErrCodeInternal, "Failed to remove follow")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
