package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/metricshour/metricshour/internal/tracing"
)

// CountryDirectory resolves ISO 3166-1 alpha-2 codes to country IDs.
type CountryDirectory interface {
	// ResolveCountry returns the country ID for code and whether it exists.
	ResolveCountry(ctx context.Context, code string) (int64, bool, error)
}

// ignoredCountryCodes are edge-provided codes that do not name a country
// (T1 = Tor exit node, XX = unknown).
var ignoredCountryCodes = map[string]bool{
	"":   true,
	"T1": true,
	"XX": true,
}

// NormalizeCountryCode upper-cases and trims code. It returns "" for codes
// that cannot name a country.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if ignoredCountryCodes[code] {
		return ""
	}
	return code
}

// InMemoryCountryDirectory is a map-backed CountryDirectory.
type InMemoryCountryDirectory struct {
	mu    sync.RWMutex
	codes map[string]int64
}

// NewInMemoryCountryDirectory creates a directory from code -> ID pairs.
func NewInMemoryCountryDirectory(codes map[string]int64) *InMemoryCountryDirectory {
	d := &InMemoryCountryDirectory{codes: make(map[string]int64, len(codes))}
	for code, id := range codes {
		d.codes[strings.ToUpper(code)] = id
	}
	return d
}

// ResolveCountry implements CountryDirectory.
func (d *InMemoryCountryDirectory) ResolveCountry(ctx context.Context, code string) (int64, bool, error) {
	code = NormalizeCountryCode(code)
	if code == "" {
		return 0, false, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.codes[code]
	return id, ok, nil
}

// PostgresCountryDirectory resolves codes against the countries table.
type PostgresCountryDirectory struct {
	db *sql.DB
}

// NewPostgresCountryDirectory creates a new PostgresCountryDirectory.
func NewPostgresCountryDirectory(db *sql.DB) *PostgresCountryDirectory {
	return &PostgresCountryDirectory{db: db}
}

// ResolveCountry implements CountryDirectory.
func (d *PostgresCountryDirectory) ResolveCountry(ctx context.Context, code string) (id int64, found bool, err error) {
	code = NormalizeCountryCode(code)
	if code == "" {
		return 0, false, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "countries", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = d.db.QueryRowContext(ctx, `SELECT id FROM countries WHERE code = $1`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve country %s: %w", code, err)
	}
	return id, true, nil
}
