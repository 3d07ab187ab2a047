package businesses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/pagination"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// Repository exposes persistence helpers for listings and their pending edits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	Create(ctx context.Context, business *models.Business) error
	UpdateFields(ctx context.Context, id uuid.UUID, status enums.BusinessStatus, fields types.ListingFields) (bool, error)
	UpdateModeration(ctx context.Context, id uuid.UUID, from enums.BusinessStatus, update moderationUpdate) (bool, error)
	UpdateFlags(ctx context.Context, id uuid.UUID, flags FlagsInput) error
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error)
	ListByStatus(ctx context.Context, status enums.BusinessStatus, limit int, cursor *pagination.Cursor) ([]models.Business, error)

	FindPendingEdit(ctx context.Context, businessID uuid.UUID) (*models.PendingEdit, error)
	PendingEditsFor(ctx context.Context, businessIDs []uuid.UUID) (map[uuid.UUID]models.PendingEdit, error)
	UpsertPendingEdit(ctx context.Context, edit *models.PendingEdit) error
	ReviewPendingEdit(ctx context.Context, businessID uuid.UUID, from enums.PendingEditStatus, update editReview) (bool, error)
	DeletePendingEdit(ctx context.Context, businessID uuid.UUID, from enums.PendingEditStatus) (bool, error)
	ListPendingEdits(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.PendingEdit, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a businesses repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// moderationUpdate carries the columns an admin decision or resubmission writes.
type moderationUpdate struct {
	Status          enums.BusinessStatus
	IsVisible       *bool
	RejectionReason *string
	ReviewedAt      *time.Time
	ReviewedBy      *uuid.UUID
	Fields          *types.ListingFields
}

type editReview struct {
	Status          enums.PendingEditStatus
	RejectionReason *string
	ReviewedAt      time.Time
	ReviewedBy      uuid.UUID
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *repository) Create(ctx context.Context, business *models.Business) error {
	return r.db.WithContext(ctx).Create(business).Error
}

// UpdateFields overwrites the editable columns while the row is still in status.
func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, status enums.BusinessStatus, fields types.ListingFields) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Business{}).
		Where("id = ? AND status = ?", id, status).
		Updates(listingColumns(fields))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateModeration moves the row out of from. A false result means another
// request changed the status first.
func (r *repository) UpdateModeration(ctx context.Context, id uuid.UUID, from enums.BusinessStatus, update moderationUpdate) (bool, error) {
	columns := map[string]any{
		"status":           update.Status,
		"rejection_reason": update.RejectionReason,
		"reviewed_at":      update.ReviewedAt,
		"reviewed_by":      update.ReviewedBy,
	}
	if update.IsVisible != nil {
		columns["is_visible"] = *update.IsVisible
	}
	if update.Fields != nil {
		for column, value := range listingColumns(*update.Fields) {
			columns[column] = value
		}
	}

	result := r.db.WithContext(ctx).
		Model(&models.Business{}).
		Where("id = ? AND status = ?", id, from).
		Updates(columns)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateFlags(ctx context.Context, id uuid.UUID, flags FlagsInput) error {
	columns := map[string]any{}
	if flags.IsVisible != nil {
		columns["is_visible"] = *flags.IsVisible
	}
	if flags.IsVerified != nil {
		columns["is_verified"] = *flags.IsVerified
	}
	if flags.IsTest != nil {
		columns["is_test"] = *flags.IsTest
	}
	if flags.IsPinned != nil {
		columns["is_pinned"] = *flags.IsPinned
		if *flags.IsPinned {
			columns["pinned_order"] = flags.PinnedOrder
		} else {
			columns["pinned_order"] = nil
		}
	}
	// A bare pinned order only reorders a listing that is already pinned.
	reorder := flags.IsPinned == nil && flags.PinnedOrder != nil
	if len(columns) == 0 && !reorder {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(columns) > 0 {
			if err := tx.Model(&models.Business{}).Where("id = ?", id).Updates(columns).Error; err != nil {
				return err
			}
		}
		if !reorder {
			return nil
		}
		return tx.Model(&models.Business{}).
			Where("id = ? AND is_pinned = ?", id, true).
			Update("pinned_order", *flags.PinnedOrder).Error
	})
}

func (r *repository) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error) {
	var rows []models.Business
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByStatus pages oldest first so the moderation queue is worked in order.
func (r *repository) ListByStatus(ctx context.Context, status enums.BusinessStatus, limit int, cursor *pagination.Cursor) ([]models.Business, error) {
	query := r.db.WithContext(ctx).Model(&models.Business{}).Where("status = ?", status)
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.At, cursor.ID)
	}
	var rows []models.Business
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindPendingEdit(ctx context.Context, businessID uuid.UUID) (*models.PendingEdit, error) {
	var edit models.PendingEdit
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).First(&edit).Error; err != nil {
		return nil, err
	}
	return &edit, nil
}

func (r *repository) PendingEditsFor(ctx context.Context, businessIDs []uuid.UUID) (map[uuid.UUID]models.PendingEdit, error) {
	out := make(map[uuid.UUID]models.PendingEdit, len(businessIDs))
	if len(businessIDs) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(businessIDs))
	for _, id := range businessIDs {
		ids = append(ids, id.String())
	}
	var rows []models.PendingEdit
	if err := r.db.WithContext(ctx).Where("business_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BusinessID] = row
	}
	return out, nil
}

// UpsertPendingEdit replaces whatever edit the business carries. The unique
// business_id makes concurrent submissions resolve to the last write.
func (r *repository) UpsertPendingEdit(ctx context.Context, edit *models.PendingEdit) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "business_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"submitted_by",
				"changes",
				"status",
				"rejection_reason",
				"reviewed_at",
				"reviewed_by",
				"updated_at",
			}),
		}).
		Create(edit).Error
}

func (r *repository) ReviewPendingEdit(ctx context.Context, businessID uuid.UUID, from enums.PendingEditStatus, update editReview) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingEdit{}).
		Where("business_id = ? AND status = ?", businessID, from).
		Updates(map[string]any{
			"status":           update.Status,
			"rejection_reason": update.RejectionReason,
			"reviewed_at":      update.ReviewedAt,
			"reviewed_by":      update.ReviewedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeletePendingEdit(ctx context.Context, businessID uuid.UUID, from enums.PendingEditStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, from).
		Delete(&models.PendingEdit{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListPendingEdits(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.PendingEdit, error) {
	query := r.db.WithContext(ctx).Model(&models.PendingEdit{}).Where("status = ?", enums.PendingEditStatusPending)
	if cursor != nil {
		query = query.Where("(updated_at, id) > (?, ?)", cursor.At, cursor.ID)
	}
	var rows []models.PendingEdit
	if err := query.Order("updated_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func listingColumns(f types.ListingFields) map[string]any {
	return map[string]any{
		"name_he":          f.Name.He,
		"name_ru":          f.Name.Ru,
		"description_he":   f.Description.He,
		"description_ru":   f.Description.Ru,
		"address_he":       f.Address.He,
		"address_ru":       f.Address.Ru,
		"opening_hours_he": f.OpeningHours.He,
		"opening_hours_ru": f.OpeningHours.Ru,
		"category_id":      f.CategoryID,
		"subcategory_id":   f.SubcategoryID,
		"city_id":          f.CityID,
		"neighborhood_id":  f.NeighborhoodID,
		"serves_all_city":  f.ServesAllCity,
		"phone":            f.Phone,
		"whatsapp_number":  f.WhatsappNumber,
		"website":          f.Website,
		"email":            f.Email,
		"social":           f.Social,
		"tags":             pq.StringArray(f.Tags),
	}
}
