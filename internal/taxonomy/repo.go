package taxonomy

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db/models"
)

// Repository reads and writes the search taxonomy.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// refClause matches ref against the id when it parses as a UUID and against
// the slug otherwise.
func refClause(ref string) (string, any) {
	if id, err := uuid.Parse(ref); err == nil {
		return "id = ?", id.String()
	}
	return "slug = ?", strings.ToLower(strings.TrimSpace(ref))
}

func (r *Repository) CategoryByRef(ctx context.Context, ref string) (*models.Category, error) {
	clause, arg := refClause(ref)
	var category models.Category
	if err := r.db.WithContext(ctx).Where(clause, arg).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) SubcategoryByRef(ctx context.Context, categoryID uuid.UUID, ref string) (*models.Subcategory, error) {
	clause, arg := refClause(ref)
	var sub models.Subcategory
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID.String()).
		Where(clause, arg).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) CityByRef(ctx context.Context, ref string) (*models.City, error) {
	clause, arg := refClause(ref)
	var city models.City
	if err := r.db.WithContext(ctx).Where(clause, arg).First(&city).Error; err != nil {
		return nil, err
	}
	return &city, nil
}

func (r *Repository) NeighborhoodByRef(ctx context.Context, cityID uuid.UUID, ref string) (*models.Neighborhood, error) {
	clause, arg := refClause(ref)
	var n models.Neighborhood
	err := r.db.WithContext(ctx).
		Where("city_id = ?", cityID.String()).
		Where(clause, arg).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repository) ListCities(ctx context.Context) ([]models.City, error) {
	var rows []models.City
	if err := r.db.WithContext(ctx).Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListNeighborhoods(ctx context.Context, cityID uuid.UUID) ([]models.Neighborhood, error) {
	var rows []models.Neighborhood
	err := r.db.WithContext(ctx).
		Where("city_id = ?", cityID.String()).
		Order("slug ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCategories returns categories with their subcategories, both by sort order.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).
		Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("slug ASC")
		}).
		Order("sort_order ASC").
		Order("slug ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CreateCity(ctx context.Context, city *models.City) error {
	return r.db.WithContext(ctx).Create(city).Error
}

func (r *Repository) CreateNeighborhood(ctx context.Context, n *models.Neighborhood) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateCategory inserts the category row only; subcategories are created separately.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Omit("Subcategories").Create(category).Error
}

func (r *Repository) CreateSubcategory(ctx context.Context, sub *models.Subcategory) error {
	return r.db.WithContext(ctx).Create(sub).Error
}
