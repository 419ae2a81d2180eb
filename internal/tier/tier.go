// Package tier maps subscription tier names to their immutable limits.
package tier

import (
	"strings"

	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// Tier names recognized by the engine.
const (
	Free = "free"
	Pro  = "pro"
)

var limits = map[string]models.TierLimits{
	Free: {
		TimeRangeDays:     7,
		DailyAddressLimit: 5,
		MaxTransactions:   50,
		GraphDepth:        1,
		ExportEnabled:     false,
	},
	Pro: {
		TimeRangeDays:     180, // 6 months
		DailyAddressLimit: 50,
		MaxTransactions:   500,
		GraphDepth:        3,
		ExportEnabled:     true,
	},
}

// Resolve returns the limits for the given tier name. Unknown or empty
// names resolve to the free tier, the most restrictive one.
func Resolve(name string) models.TierLimits {
	if l, ok := limits[Normalize(name)]; ok {
		return l
	}
	return limits[Free]
}

// Normalize returns the canonical tier name for name, falling back to free
// for anything unrecognized.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := limits[name]; ok {
		return name
	}
	return Free
}
