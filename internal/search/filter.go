package search

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
)

// Filter is the predicate of a single resolver tier. A nil subcategory or
// neighborhood means the tier does not constrain it.
type Filter struct {
	CategoryID     uuid.UUID
	SubcategoryID  *uuid.UUID
	CityID         uuid.UUID
	NeighborhoodID *uuid.UUID
	IncludeTest    bool
}

// Predicate renders the filter as SQL. Listing and count queries share it so a
// tier's total always agrees with its rows.
func (f Filter) Predicate() sq.Sqlizer {
	pred := sq.And{
		sq.Eq{"status": string(enums.BusinessStatusApproved)},
		sq.Eq{"is_visible": true},
		sq.Eq{"category_id": f.CategoryID.String()},
		sq.Eq{"city_id": f.CityID.String()},
	}
	if !f.IncludeTest {
		pred = append(pred, sq.Eq{"is_test": false})
	}
	if f.SubcategoryID != nil {
		pred = append(pred, sq.Eq{"subcategory_id": f.SubcategoryID.String()})
	}
	if f.NeighborhoodID != nil {
		pred = append(pred, sq.Or{
			sq.Eq{"serves_all_city": true},
			sq.Eq{"neighborhood_id": f.NeighborhoodID.String()},
		})
	}
	return pred
}

// Matches evaluates the same predicate in memory.
func (f Filter) Matches(b models.Business) bool {
	if !b.IsPublic() || b.CategoryID != f.CategoryID || b.CityID != f.CityID {
		return false
	}
	if b.IsTest && !f.IncludeTest {
		return false
	}
	if f.SubcategoryID != nil && (b.SubcategoryID == nil || *b.SubcategoryID != *f.SubcategoryID) {
		return false
	}
	if f.NeighborhoodID != nil && !b.ServesAllCity {
		return b.NeighborhoodID != nil && *b.NeighborhoodID == *f.NeighborhoodID
	}
	return true
}
