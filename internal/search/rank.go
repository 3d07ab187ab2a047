package search

import (
	"cmp"
	"slices"
)

// Shuffler permutes n elements through swap, matching math/rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Rank orders listings in place: pinned first by ascending pinned order, then
// by average rating and review count, with the id as the final tiebreak. When
// topBand > 1 the first topBand unpinned listings are shuffled so the same
// business does not hold the top slot forever.
func Rank(listings []Listing, topBand int, shuffle Shuffler) []Listing {
	sortListings(listings)
	shuffleTopBand(listings, topBand, shuffle)
	return listings
}

func sortListings(listings []Listing) {
	slices.SortStableFunc(listings, compareRecommended)
}

func compareRecommended(a, b Listing) int {
	if c := comparePinned(a, b); c != 0 {
		return c
	}
	if a.IsPinned {
		return cmp.Compare(a.ID.String(), b.ID.String())
	}
	if c := cmp.Compare(b.Rating.Average, a.Rating.Average); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Rating.Count, a.Rating.Count); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

// comparePinned puts pinned listings first; a pinned listing without an order
// goes after the ordered ones.
func comparePinned(a, b Listing) int {
	switch {
	case a.IsPinned && !b.IsPinned:
		return -1
	case !a.IsPinned && b.IsPinned:
		return 1
	case !a.IsPinned:
		return 0
	}
	switch {
	case a.PinnedOrder == nil && b.PinnedOrder == nil:
		return 0
	case a.PinnedOrder == nil:
		return 1
	case b.PinnedOrder == nil:
		return -1
	}
	return cmp.Compare(*a.PinnedOrder, *b.PinnedOrder)
}

func shuffleTopBand(listings []Listing, topBand int, shuffle Shuffler) {
	if topBand <= 1 || shuffle == nil {
		return
	}
	start := 0
	for start < len(listings) && listings[start].IsPinned {
		start++
	}
	band := listings[start:]
	if len(band) > topBand {
		band = band[:topBand]
	}
	if len(band) < 2 {
		return
	}
	shuffle(len(band), func(i, j int) {
		band[i], band[j] = band[j], band[i]
	})
}
