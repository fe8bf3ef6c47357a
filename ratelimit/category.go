package ratelimit

import (
	"fmt"
	"strings"
)

// Category partitions the counting space. A principal's usage in one
// category never affects its quota in another.
type Category string

const (
	CategorySave        Category = "Save"
	CategoryQuickCreate Category = "QuickCreate"
	CategorySearch      Category = "Search"
	CategoryJobs        Category = "Jobs"
	CategoryShare       Category = "Share"
	CategoryRecent      Category = "Recent"
)

// Categories lists every known category.
var Categories = []Category{
	CategorySave,
	CategoryQuickCreate,
	CategorySearch,
	CategoryJobs,
	CategoryShare,
	CategoryRecent,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories, case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// cacheKey returns the cache key for a principal's window in category c.
func cacheKey(c Category, principalKey string) string {
	return "ratelimit:" + string(c) + ":" + principalKey
}
