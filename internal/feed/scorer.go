package feed

import (
	"time"

	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/follow"
	"github.com/metricshour/metricshour/internal/interaction"
)

// Profile is the personalization context loaded for one ranking call.
// A nil *Profile means the caller is anonymous.
type Profile struct {
	UserID       int64
	Follows      follow.Sets
	Interactions map[int64]interaction.Interaction
}

// Breakdown holds the individual score terms for one item.
type Breakdown struct {
	Recency     float64 `json:"recency"`
	Importance  float64 `json:"importance"`
	Follow      float64 `json:"follow"`
	Interaction float64 `json:"interaction"`
	Geo         float64 `json:"geo"`
}

// Total returns the sum of all terms.
func (b Breakdown) Total() float64 {
	return b.Recency + b.Importance + b.Follow + b.Interaction + b.Geo
}

// Scorer computes relevance scores. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. A nil cfg uses DefaultConfig.
func NewScorer(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: *cfg}
}

// Breakdown computes every score term for item at time now.
// Follow and interaction terms are zero when profile is nil; the geo term
// applies whenever geoCountryID is set.
func (s *Scorer) Breakdown(item *content.Item, now time.Time, profile *Profile, geoCountryID *int64) Breakdown {
	b := Breakdown{
		Recency:    RecencyWeight(item.PublishedAt, now, s.cfg.HalfLifeHours, s.cfg.RecencyMax),
		Importance: ImportanceWeight(item.Importance),
		Geo:        GeoWeight(item.RelatedCountryIDs, geoCountryID, s.cfg.GeoCountryBoost),
	}
	if profile == nil {
		return b
	}

	b.Follow = FollowBoost(item.RelatedAssetIDs, profile.Follows.Assets, s.cfg.FollowAssetBoost) +
		FollowBoost(item.RelatedCountryIDs, profile.Follows.Countries, s.cfg.FollowCountryBoost)

	if rec, ok := profile.Interactions[item.ID]; ok {
		b.Interaction = InteractionWeight(rec.Kind)
	}
	return b
}

// Score returns the total relevance score for item.
func (s *Scorer) Score(item *content.Item, now time.Time, profile *Profile, geoCountryID *int64) float64 {
	return s.Breakdown(item, now, profile, geoCountryID).Total()
}
