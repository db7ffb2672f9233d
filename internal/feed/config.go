package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"
)

// Default ranking parameters.
const (
	DefaultRecencyMax           = 10.0
	DefaultHalfLifeHours        = 6.0
	DefaultFollowAssetBoost     = 8.0
	DefaultFollowCountryBoost   = 6.0
	DefaultGeoCountryBoost      = 4.0
	DefaultCandidateWindowHours = 48.0
	DefaultMaxCandidates        = 300
	DefaultMaxPageSize          = 50
	DefaultPageSize             = 20

	// MaxHours bounds half_life_hours and candidate_window_hours (one year).
	MaxHours = 24 * 365.0
)

// ErrInvalidConfig is returned when ranking parameters cannot produce finite scores.
var ErrInvalidConfig = errors.New("invalid ranking config")

// Config holds the tunable ranking parameters. Interaction weights are not
// part of it: they are a fixed table (see InteractionWeight).
type Config struct {
	RecencyMax           float64 `json:"recency_max"`            // Recency term for an item published now (default: 10)
	HalfLifeHours        float64 `json:"half_life_hours"`        // Recency halves every HalfLifeHours (default: 6)
	FollowAssetBoost     float64 `json:"follow_asset_boost"`     // Per matched followed asset (default: 8)
	FollowCountryBoost   float64 `json:"follow_country_boost"`   // Per matched followed country (default: 6)
	GeoCountryBoost      float64 `json:"geo_country_boost"`      // Item tagged with the visitor's country (default: 4)
	CandidateWindowHours float64 `json:"candidate_window_hours"` // Only items this recent are ranked (default: 48)
	MaxCandidates        int     `json:"max_candidates"`         // Candidate pool cap (default: 300)
	MaxPageSize          int     `json:"max_page_size"`          // Page sizes above this are clamped (default: 50)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string `json:"version"`
	Ranking Config `json:"ranking"`
}

// DefaultConfig returns the default ranking configuration.
//
// Formula: score = recency + importance + follow_boost + interaction_adjustment + geo_boost
//   - recency = 10 * 0.5^(age_hours / 6), in (0, 10]
//   - importance = item importance, in [0, 10]
//   - follow_boost = 8 per followed asset + 6 per followed country on the item
//   - interaction_adjustment = save +5, share +4, click +3, view +1, skip -5
//   - geo_boost = 4 if the item is tagged with the visitor's country
func DefaultConfig() *Config {
	return &Config{
		RecencyMax:           DefaultRecencyMax,
		HalfLifeHours:        DefaultHalfLifeHours,
		FollowAssetBoost:     DefaultFollowAssetBoost,
		FollowCountryBoost:   DefaultFollowCountryBoost,
		GeoCountryBoost:      DefaultGeoCountryBoost,
		CandidateWindowHours: DefaultCandidateWindowHours,
		MaxCandidates:        DefaultMaxCandidates,
		MaxPageSize:          DefaultMaxPageSize,
	}
}

// HalfLife returns the recency half-life as a duration.
func (c *Config) HalfLife() time.Duration {
	return hoursToDuration(c.HalfLifeHours)
}

// CandidateWindow returns the candidate window as a duration.
func (c *Config) CandidateWindow() time.Duration {
	return hoursToDuration(c.CandidateWindowHours)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Validate checks that every parameter yields finite, well-defined scores.
func (c *Config) Validate() error {
	finite := map[string]float64{
		"recency_max":          c.RecencyMax,
		"follow_asset_boost":   c.FollowAssetBoost,
		"follow_country_boost": c.FollowCountryBoost,
		"geo_country_boost":    c.GeoCountryBoost,
	}
	for name, v := range finite {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, name)
		}
	}
	hours := []struct {
		name string
		v    float64
	}{
		{"half_life_hours", c.HalfLifeHours},
		{"candidate_window_hours", c.CandidateWindowHours},
	}
	for _, h := range hours {
		if !(h.v > 0) || h.v > MaxHours {
			return fmt.Errorf("%w: %s must be in (0, %v] (got %v)", ErrInvalidConfig, h.name, MaxHours, h.v)
		}
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("%w: max_candidates must be > 0 (got %d)", ErrInvalidConfig, c.MaxCandidates)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("%w: max_page_size must be > 0 (got %d)", ErrInvalidConfig, c.MaxPageSize)
	}
	return nil
}

// LoadCalibration loads ranking parameters from a JSON calibration file.
// An empty path returns the defaults. On read or parse failure the defaults
// are returned together with the error so callers can degrade gracefully.
// Partial files are merged over the defaults.
func LoadCalibration(filePath string) (*Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var calibration CalibrationConfig
	if err := json.Unmarshal(data, &calibration); err != nil {
		slog.Warn("failed to parse ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultConfig()
	merged := MergeCalibration(defaults, &calibration.Ranking)
	if err := merged.Validate(); err != nil {
		slog.Warn("ranking calibration rejected, using defaults",
			"path", filePath,
			"error", err)
		return defaults, err
	}
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override values over base. Only non-zero values
// from override are applied, so a calibration file cannot zero a boost.
func MergeCalibration(base *Config, override *Config) *Config {
	if base == nil {
		return DefaultConfig()
	}
	result := *base
	if override == nil {
		return &result
	}

	if override.RecencyMax != 0 {
		result.RecencyMax = override.RecencyMax
	}
	if override.HalfLifeHours != 0 {
		result.HalfLifeHours = override.HalfLifeHours
	}
	if override.FollowAssetBoost != 0 {
		result.FollowAssetBoost = override.FollowAssetBoost
	}
	if override.FollowCountryBoost != 0 {
		result.FollowCountryBoost = override.FollowCountryBoost
	}
	if override.GeoCountryBoost != 0 {
		result.GeoCountryBoost = override.GeoCountryBoost
	}
	if override.CandidateWindowHours != 0 {
		result.CandidateWindowHours = override.CandidateWindowHours
	}
	if override.MaxCandidates != 0 {
		result.MaxCandidates = override.MaxCandidates
	}
	if override.MaxPageSize != 0 {
		result.MaxPageSize = override.MaxPageSize
	}

	return &result
}

// logCalibrationOverrides logs which parameters differ from the defaults.
func logCalibrationOverrides(defaults *Config, loaded *Config) {
	var overrides []string

	floats := []struct {
		name     string
		from, to float64
	}{
		{"recency_max", defaults.RecencyMax, loaded.RecencyMax},
		{"half_life_hours", defaults.HalfLifeHours, loaded.HalfLifeHours},
		{"follow_asset_boost", defaults.FollowAssetBoost, loaded.FollowAssetBoost},
		{"follow_country_boost", defaults.FollowCountryBoost, loaded.FollowCountryBoost},
		{"geo_country_boost", defaults.GeoCountryBoost, loaded.GeoCountryBoost},
		{"candidate_window_hours", defaults.CandidateWindowHours, loaded.CandidateWindowHours},
	}
	for _, f := range floats {
		if f.from != f.to {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.from, f.to))
		}
	}
	if loaded.MaxCandidates != defaults.MaxCandidates {
		overrides = append(overrides, fmt.Sprintf("max_candidates: %d -> %d", defaults.MaxCandidates, loaded.MaxCandidates))
	}
	if loaded.MaxPageSize != defaults.MaxPageSize {
		overrides = append(overrides, fmt.Sprintf("max_page_size: %d -> %d", defaults.MaxPageSize, loaded.MaxPageSize))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
