package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/tracing"
)

// ItemSource lists published items newest first.
type ItemSource interface {
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]content.Item, error)
}

// Request describes one ranking call.
type Request struct {
	// UserID is nil for anonymous callers.
	UserID *int64
	// Page is 1-based.
	Page int
	// PageSize is clamped to [1, Config.MaxPageSize].
	PageSize int
	// Now is the reference time for recency and the candidate window.
	// The zero value means time.Now().
	Now time.Time
	// GeoCountryID is the visitor's country, if known.
	GeoCountryID *int64
}

// Ranker selects, scores, orders and paginates feed items. It is safe for
// concurrent use; each call reads its own snapshot of the sources.
type Ranker struct {
	cfg          Config
	items        ItemSource
	personalizer *Personalizer
	scorer       *Scorer
	metrics      *Metrics
	logger       *slog.Logger
}

// Sources bundles the data sources a Ranker reads.
type Sources struct {
	Items        ItemSource
	Follows      FollowSource
	Interactions InteractionSource
}

// NewRanker creates a Ranker. A nil cfg uses DefaultConfig; metrics may be nil.
func NewRanker(cfg *Config, sources Sources, metrics *Metrics, logger *slog.Logger) (*Ranker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sources.Items == nil || sources.Follows == nil || sources.Interactions == nil {
		return nil, errors.New("feed: items, follows and interactions sources are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		cfg:          *cfg,
		items:        sources.Items,
		personalizer: NewPersonalizer(sources.Follows, sources.Interactions),
		scorer:       NewScorer(cfg),
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Config returns a copy of the ranking parameters in use.
func (r *Ranker) Config() Config {
	return r.cfg
}

type scoredItem struct {
	item  content.Item
	score float64
}

// Rank returns one page of the feed for req.
//
// Candidates are the newest items published within the candidate window, up
// to MaxCandidates. They are sorted by score descending; equal scores keep
// candidate order (newer first). A page beyond the end returns an empty slice.
func (r *Ranker) Rank(ctx context.Context, req Request) (page []content.Item, err error) {
	mode := ModeAnonymous
	if req.UserID != nil {
		mode = ModePersonalized
	}

	ctx, endSpan := tracing.StartSpan(ctx, "feed.rank")
	start := time.Now()
	defer func() {
		endSpan(err)
		if r.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			r.metrics.ObserveRank(mode, status, time.Since(start).Seconds())
		}
	}()

	if req.Page < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPage, req.Page)
	}
	size := ClampPageSize(req.PageSize, r.cfg.MaxPageSize)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	candidates, err := r.selectCandidates(ctx, now)
	if err != nil {
		r.recordSourceError(ctx, err)
		return nil, err
	}
	tracing.SetAttributes(ctx,
		attribute.String("feed.mode", mode),
		attribute.Int("feed.candidates", len(candidates)),
		attribute.Int("feed.page", req.Page),
		attribute.Int("feed.page_size", size),
	)
	if r.metrics != nil {
		r.metrics.ObserveCandidates(len(candidates))
	}
	if len(candidates) == 0 {
		return []content.Item{}, nil
	}

	var profile *Profile
	if req.UserID != nil {
		profile, err = r.personalizer.Load(ctx, *req.UserID)
		if err != nil {
			r.recordSourceError(ctx, err)
			return nil, err
		}
	}

	scored := make([]scoredItem, len(candidates))
	for i := range candidates {
		scored[i] = scoredItem{
			item:  candidates[i],
			score: r.scorer.Score(&candidates[i], now, profile, req.GeoCountryID),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	window, err := Paginate(scored, req.Page, size)
	if err != nil {
		return nil, err
	}
	page = make([]content.Item, len(window))
	for i, s := range window {
		page[i] = s.item
	}

	r.logger.DebugContext(ctx, "feed ranked",
		slog.String("mode", mode),
		slog.Int("candidates", len(candidates)),
		slog.Int("page", req.Page),
		slog.Int("page_size", size),
		slog.Int("returned", len(page)))

	return page, nil
}

// selectCandidates loads items published within the window ending at now,
// newest first, capped at MaxCandidates. The window and cap are re-applied
// to whatever the source returns.
func (r *Ranker) selectCandidates(ctx context.Context, now time.Time) ([]content.Item, error) {
	since := now.Add(-r.cfg.CandidateWindow())

	items, err := r.items.ListPublishedSince(ctx, since, r.cfg.MaxCandidates)
	if err != nil {
		return nil, &SourceError{Source: SourceItems, Err: err}
	}

	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if it.PublishedUTC().Before(since) {
			continue
		}
		out = append(out, it)
		if len(out) == r.cfg.MaxCandidates {
			break
		}
	}
	return out, nil
}

func (r *Ranker) recordSourceError(ctx context.Context, err error) {
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		return
	}
	if r.metrics != nil {
		r.metrics.IncSourceError(srcErr.Source)
	}
	r.logger.ErrorContext(ctx, "feed ranking source failed",
		slog.String("source", srcErr.Source),
		slog.String("error", srcErr.Err.Error()))
}
