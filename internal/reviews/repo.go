package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/pagination"
)

// Repository exposes persistence helpers for reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	Create(ctx context.Context, review *models.Review) error
	List(ctx context.Context, params listParams) ([]models.Review, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reviews repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	BusinessID uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// List returns up to params.Limit reviews newest first, starting after the cursor.
func (r *repository) List(ctx context.Context, params listParams) ([]models.Review, error) {
	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("business_id = ?", params.BusinessID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.At, params.Cursor.ID)
	}

	var rows []models.Review
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
