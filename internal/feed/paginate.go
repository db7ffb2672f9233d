package feed

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned when a page number below 1 is requested.
var ErrInvalidPage = errors.New("page must be >= 1")

// ClampPageSize forces size into [1, maxSize].
func ClampPageSize(size, maxSize int) int {
	if maxSize < 1 {
		maxSize = DefaultMaxPageSize
	}
	if size < 1 {
		return 1
	}
	if size > maxSize {
		return maxSize
	}
	return size
}

// Paginate returns the 1-based page of items with the given size. The size
// must already be clamped. A page past the end yields an empty, non-nil slice.
func Paginate[T any](items []T, page, size int) ([]T, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPage, page)
	}
	if size < 1 {
		size = 1
	}

	// Guard the multiplication against overflow for absurd page numbers.
	if page-1 > len(items)/size {
		return []T{}, nil
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, nil
}
