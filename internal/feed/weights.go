package feed

import (
	"math"
	"time"

	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/interaction"
)

// interactionWeights is the fixed adjustment per interaction kind.
var interactionWeights = map[interaction.Kind]float64{
	interaction.KindSave:  5.0,
	interaction.KindShare: 4.0,
	interaction.KindClick: 3.0,
	interaction.KindView:  1.0,
	interaction.KindSkip:  -5.0,
}

// InteractionWeight returns the score adjustment for an interaction kind.
// Unknown kinds contribute 0.
func InteractionWeight(kind interaction.Kind) float64 {
	return interactionWeights[kind]
}

// RecencyWeight computes the exponential decay term:
//
//	maxScore * 0.5^(age_hours / halfLifeHours)
//
// Age is clamped at 0, so items published in the future score maxScore.
// A non-positive half-life returns maxScore rather than dividing by zero.
func RecencyWeight(publishedAt, now time.Time, halfLifeHours, maxScore float64) float64 {
	ageHours := now.Sub(content.NormalizeUTC(publishedAt)).Hours()
	if ageHours < 0 || math.IsNaN(ageHours) {
		ageHours = 0
	}
	if !(halfLifeHours > 0) {
		return maxScore
	}
	return maxScore * math.Exp2(-ageHours/halfLifeHours)
}

// ImportanceWeight returns the importance term for an item.
// Missing importance is 0; values outside [0, 10] are clamped.
func ImportanceWeight(importance *float64) float64 {
	if importance == nil {
		return 0
	}
	v := *importance
	switch {
	case math.IsNaN(v), v < content.MinImportance:
		return content.MinImportance
	case v > content.MaxImportance:
		return content.MaxImportance
	}
	return v
}

// FollowBoost sums boost over the related IDs that are followed. Each distinct
// ID counts once; IDs that no longer resolve simply never match.
func FollowBoost(related []int64, followed map[int64]struct{}, boost float64) float64 {
	if len(related) == 0 || len(followed) == 0 {
		return 0
	}
	matches := 0
	var seen map[int64]struct{}
	if len(related) > 1 {
		seen = make(map[int64]struct{}, len(related))
	}
	for _, id := range related {
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		if _, ok := followed[id]; ok {
			matches++
		}
	}
	return float64(matches) * boost
}

// GeoWeight returns boost when the item is tagged with the visitor's country.
func GeoWeight(related []int64, geoCountryID *int64, boost float64) float64 {
	if geoCountryID == nil {
		return 0
	}
	for _, id := range related {
		if id == *geoCountryID {
			return boost
		}
	}
	return 0
}

