package search

import (
	"strings"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
)

// Query is a resolved search request. Category and city are mandatory.
type Query struct {
	CategoryID     uuid.UUID
	SubcategoryID  *uuid.UUID
	NeighborhoodID *uuid.UUID
	CityID         uuid.UUID
}

func (q Query) Validate() error {
	errs := pkgerrors.FieldErrors{}
	if q.CategoryID == uuid.Nil {
		errs.Add("category", "category is required")
	}
	if q.CityID == uuid.Nil {
		errs.Add("city", "city is required")
	}
	return errs.Err()
}

// fallbackEligible reports whether an empty exact tier may be relaxed. Both
// optional filters must be present, otherwise there is nothing to trade off.
func (q Query) fallbackEligible() bool {
	return q.SubcategoryID != nil && q.NeighborhoodID != nil
}

func (q Query) exact(includeTest bool) Filter {
	return Filter{
		CategoryID:     q.CategoryID,
		SubcategoryID:  q.SubcategoryID,
		CityID:         q.CityID,
		NeighborhoodID: q.NeighborhoodID,
		IncludeTest:    includeTest,
	}
}

// primary keeps intent: same subcategory anywhere in the city.
func (q Query) primary(includeTest bool) Filter {
	f := q.exact(includeTest)
	f.NeighborhoodID = nil
	return f
}

// secondary keeps locality: any subcategory in the same neighborhood.
func (q Query) secondary(includeTest bool) Filter {
	f := q.exact(includeTest)
	f.SubcategoryID = nil
	return f
}

// Input is the raw request. Each reference is either a UUID or a slug; the
// subcategory slug is scoped to the category and the neighborhood slug to the city.
type Input struct {
	Category     string
	Subcategory  string
	Neighborhood string
	City         string
	View         View
}

func (in Input) trimmed() Input {
	in.Category = strings.TrimSpace(in.Category)
	in.Subcategory = strings.TrimSpace(in.Subcategory)
	in.Neighborhood = strings.TrimSpace(in.Neighborhood)
	in.City = strings.TrimSpace(in.City)
	return in
}

// View is the presentational re-sort and filter applied to resolved tiers.
type View struct {
	Sort            enums.SortOption
	Locale          enums.Locale
	VerifiedOnly    bool
	WithReviewsOnly bool
}
