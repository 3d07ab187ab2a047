package enums

import (
	"fmt"
	"strings"
)

// SearchTier names the stage of the resolver that produced a result set.
type SearchTier string

const (
	SearchTierExact             SearchTier = "exact"
	SearchTierPrimaryFallback   SearchTier = "primary-fallback"
	SearchTierSecondaryFallback SearchTier = "secondary-fallback"
	SearchTierEmpty             SearchTier = "empty"
)

var validSearchTiers = []SearchTier{
	SearchTierExact,
	SearchTierPrimaryFallback,
	SearchTierSecondaryFallback,
	SearchTierEmpty,
}

func (t SearchTier) String() string {
	return string(t)
}

func (t SearchTier) IsValid() bool {
	for _, candidate := range validSearchTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// SortOption is the presentational ordering requested by the client.
type SortOption string

const (
	SortRecommended  SortOption = "recommended"
	SortRating       SortOption = "rating"
	SortNewest       SortOption = "newest"
	SortAlphabetical SortOption = "alphabetical"
)

var validSortOptions = []SortOption{
	SortRecommended,
	SortRating,
	SortNewest,
	SortAlphabetical,
}

func (s SortOption) String() string {
	return string(s)
}

func (s SortOption) IsValid() bool {
	for _, candidate := range validSortOptions {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSortOption converts raw input into a SortOption. Empty input means the
// resolver's own ordering.
func ParseSortOption(value string) (SortOption, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return SortRecommended, nil
	}
	for _, candidate := range validSortOptions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort option %q", value)
}

// Locale selects which half of a bilingual pair is displayed or collated.
type Locale string

const (
	LocaleHebrew  Locale = "he"
	LocaleRussian Locale = "ru"
)

func (l Locale) String() string {
	return string(l)
}

func (l Locale) IsValid() bool {
	return l == LocaleHebrew || l == LocaleRussian
}

// ParseLocale converts raw input into a Locale, defaulting to Hebrew.
func ParseLocale(value string) (Locale, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return LocaleHebrew, nil
	}
	locale := Locale(value)
	if !locale.IsValid() {
		return "", fmt.Errorf("invalid locale %q", value)
	}
	return locale, nil
}
