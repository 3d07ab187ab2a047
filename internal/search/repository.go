package search

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db/models"
)

// Repository reads public listings and their rating aggregates.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ratingsJoin attaches each business's review aggregate so the limit keeps
// the best ranked rows rather than the oldest.
const ratingsJoin = `LEFT JOIN (
	SELECT business_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count
	FROM reviews GROUP BY business_id
) AS ratings ON ratings.business_id = businesses.id`

// FindListings returns up to limit businesses matching filter, in ranking
// order: pinned by pinned_order (unordered pins last), then average rating,
// review count and id. sortListings repeats the order in memory.
func (r *Repository) FindListings(ctx context.Context, filter Filter, limit int) ([]models.Business, error) {
	where, args, err := filter.Predicate().ToSql()
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Business{}).
		Select("businesses.*").
		Joins(ratingsJoin).
		Where(where, args...).
		Order("businesses.is_pinned DESC").
		Order("CASE WHEN businesses.is_pinned AND businesses.pinned_order IS NOT NULL THEN 0 ELSE 1 END").
		Order("CASE WHEN businesses.is_pinned THEN businesses.pinned_order END ASC").
		Order("COALESCE(ratings.avg_rating, 0) DESC").
		Order("COALESCE(ratings.review_count, 0) DESC").
		Order("businesses.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.Business
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountListings counts every business matching filter, ignoring any limit.
func (r *Repository) CountListings(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := filter.Predicate().ToSql()
	if err != nil {
		return 0, err
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Business{}).Where(where, args...).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

type ratingRow struct {
	BusinessID uuid.UUID `gorm:"column:business_id"`
	Average    float64   `gorm:"column:average"`
	Count      int64     `gorm:"column:count"`
}

// RatingsFor aggregates reviews per business. Businesses without reviews are
// absent from the map.
func (r *Repository) RatingsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RatingSummary, error) {
	out := make(map[uuid.UUID]RatingSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	stmt, args, err := sq.Select("business_id", "CAST(AVG(rating) AS FLOAT) AS average", "COUNT(*) AS count").
		From("reviews").
		Where(sq.Eq{"business_id": keys}).
		GroupBy("business_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []ratingRow
	if err := r.db.WithContext(ctx).Raw(stmt, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BusinessID] = RatingSummary{Average: row.Average, Count: row.Count}
	}
	return out, nil
}
