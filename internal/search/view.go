package search

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/citydirectory/directory-backend/pkg/enums"
)

// ApplyView filters and re-sorts an already ranked tier. It never widens the
// set, so it cannot trigger another fallback. Pinned listings stay on top
// under every sort.
func ApplyView(listings []Listing, view View) []Listing {
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if view.VerifiedOnly && !l.IsVerified {
			continue
		}
		if view.WithReviewsOnly && l.Rating.Count == 0 {
			continue
		}
		out = append(out, l)
	}

	var less func(a, b Listing) int
	switch view.Sort {
	case enums.SortRating:
		less = func(a, b Listing) int {
			if c := cmp.Compare(b.Rating.Average, a.Rating.Average); c != 0 {
				return c
			}
			return cmp.Compare(b.Rating.Count, a.Rating.Count)
		}
	case enums.SortNewest:
		less = func(a, b Listing) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	case enums.SortAlphabetical:
		coll := collatorFor(view.Locale)
		locale := view.Locale
		less = func(a, b Listing) int {
			return coll.CompareString(a.Name.In(locale), b.Name.In(locale))
		}
	default:
		return out
	}

	slices.SortStableFunc(out, func(a, b Listing) int {
		if c := comparePinned(a, b); c != 0 {
			return c
		}
		return less(a, b)
	})
	return out
}

func collatorFor(locale enums.Locale) *collate.Collator {
	tag := language.Hebrew
	if locale == enums.LocaleRussian {
		tag = language.Russian
	}
	return collate.New(tag, collate.IgnoreCase)
}
