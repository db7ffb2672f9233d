package feed

import (
	"math"
	"testing"
	"time"

	"github.com/metricshour/metricshour/internal/interaction"
)

const epsilon = 1e-9

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func TestRecencyWeight(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"published now", 0, 10},
		{"one half-life", 6 * time.Hour, 5},
		{"two half-lives", 12 * time.Hour, 2.5},
		{"window edge", 48 * time.Hour, 10.0 / 256},
		{"future publication clamps to now", -2 * time.Hour, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyWeight(now.Add(-tt.age), now, DefaultHalfLifeHours, DefaultRecencyMax)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("RecencyWeight(age=%v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestRecencyWeight_Bounds(t *testing.T) {
	now := time.Now()
	for h := 0; h <= 48; h++ {
		got := RecencyWeight(now.Add(-time.Duration(h)*time.Hour), now, DefaultHalfLifeHours, DefaultRecencyMax)
		if got <= 0 || got > DefaultRecencyMax {
			t.Errorf("RecencyWeight at %dh = %v, want in (0, 10]", h, got)
		}
	}
}

func TestRecencyWeight_MonotonicDecrease(t *testing.T) {
	now := time.Now()
	prev := math.Inf(1)
	for m := 0; m <= 48*60; m += 30 {
		got := RecencyWeight(now.Add(-time.Duration(m)*time.Minute), now, DefaultHalfLifeHours, DefaultRecencyMax)
		if got >= prev {
			t.Fatalf("recency not strictly decreasing at %d minutes: %v >= %v", m, got, prev)
		}
		prev = got
	}
}

func TestRecencyWeight_OffsetTimezone(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	published := now.Add(-6 * time.Hour).In(tokyo)

	got := RecencyWeight(published, now, DefaultHalfLifeHours, DefaultRecencyMax)
	if math.Abs(got-5) > epsilon {
		t.Errorf("RecencyWeight with offset zone = %v, want 5", got)
	}
}

func TestImportanceWeight(t *testing.T) {
	tests := []struct {
		name       string
		importance *float64
		want       float64
	}{
		{"missing", nil, 0},
		{"zero", floatPtr(0), 0},
		{"mid", floatPtr(7.5), 7.5},
		{"max", floatPtr(10), 10},
		{"below range", floatPtr(-3), 0},
		{"above range", floatPtr(14), 10},
		{"nan", floatPtr(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImportanceWeight(tt.importance); got != tt.want {
				t.Errorf("ImportanceWeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFollowBoost(t *testing.T) {
	followed := map[int64]struct{}{1: {}, 2: {}}

	tests := []struct {
		name    string
		related []int64
		want    float64
	}{
		{"no related", nil, 0},
		{"no match", []int64{3, 4}, 0},
		{"one match", []int64{1, 3}, 8},
		{"two matches", []int64{1, 2}, 16},
		{"duplicate id counts once", []int64{1, 1, 1}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FollowBoost(tt.related, followed, DefaultFollowAssetBoost); got != tt.want {
				t.Errorf("FollowBoost(%v) = %v, want %v", tt.related, got, tt.want)
			}
		})
	}

	if got := FollowBoost([]int64{1}, nil, DefaultFollowAssetBoost); got != 0 {
		t.Errorf("FollowBoost with no follows = %v, want 0", got)
	}
}

func TestInteractionWeight(t *testing.T) {
	tests := []struct {
		kind interaction.Kind
		want float64
	}{
		{interaction.KindSave, 5},
		{interaction.KindShare, 4},
		{interaction.KindClick, 3},
		{interaction.KindView, 1},
		{interaction.KindSkip, -5},
		{interaction.Kind("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := InteractionWeight(tt.kind); got != tt.want {
				t.Errorf("InteractionWeight(%q) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestGeoWeight(t *testing.T) {
	related := []int64{10, 20}

	if got := GeoWeight(related, nil, DefaultGeoCountryBoost); got != 0 {
		t.Errorf("GeoWeight without country = %v, want 0", got)
	}
	if got := GeoWeight(related, int64Ptr(20), DefaultGeoCountryBoost); got != DefaultGeoCountryBoost {
		t.Errorf("GeoWeight with matching country = %v, want %v", got, DefaultGeoCountryBoost)
	}
	if got := GeoWeight(related, int64Ptr(30), DefaultGeoCountryBoost); got != 0 {
		t.Errorf("GeoWeight with other country = %v, want 0", got)
	}
}
