package businesses

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydirectory/directory-backend/pkg/db/dbtest"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

func TestUpdateModerationRequiresExpectedStatus(t *testing.T) {
	conn := dbtest.Open(t)
	tax := dbtest.MustSeedTaxonomy(t, conn, "netanya", nil, "electricians", nil)
	business := dbtest.MustCreateBusiness(t, conn, dbtest.NewBusiness(tax.Category.ID, tax.City.ID), func(b *models.Business) {
		b.Status = enums.BusinessStatusPending
		b.IsVisible = false
	})
	repo := NewRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	visible := true
	ok, err := repo.UpdateModeration(ctx, business.ID, enums.BusinessStatusRejected, moderationUpdate{
		Status:     enums.BusinessStatusPending,
		ReviewedAt: &now,
	})
	require.NoError(t, err)
	assert.False(t, ok, "status guard must reject a stale transition")

	ok, err = repo.UpdateModeration(ctx, business.ID, enums.BusinessStatusPending, moderationUpdate{
		Status:     enums.BusinessStatusApproved,
		IsVisible:  &visible,
		ReviewedAt: &now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, business.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusApproved, stored.Status)
	assert.True(t, stored.IsVisible)
	require.NotNil(t, stored.ReviewedAt)
}

func TestUpsertPendingEditKeepsOneRow(t *testing.T) {
	conn := dbtest.Open(t)
	tax := dbtest.MustSeedTaxonomy(t, conn, "netanya", nil, "electricians", nil)
	business := dbtest.MustCreateBusiness(t, conn, dbtest.NewBusiness(tax.Category.ID, tax.City.ID))
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := uuid.New()

	reason := "wrong phone"
	first := &models.PendingEdit{
		BusinessID:      business.ID,
		SubmittedBy:     owner,
		Changes:         types.ListingFields{Name: types.Localized{He: "ראשון"}},
		Status:          enums.PendingEditStatusRejected,
		RejectionReason: &reason,
	}
	require.NoError(t, repo.UpsertPendingEdit(ctx, first))

	second := &models.PendingEdit{
		BusinessID:  business.ID,
		SubmittedBy: owner,
		Changes:     types.ListingFields{Name: types.Localized{He: "שני"}},
		Status:      enums.PendingEditStatusPending,
	}
	require.NoError(t, repo.UpsertPendingEdit(ctx, second))

	var rows []models.PendingEdit
	require.NoError(t, conn.Where("business_id = ?", business.ID.String()).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, "שני", rows[0].Changes.Name.He)
	assert.Equal(t, enums.PendingEditStatusPending, rows[0].Status)
	assert.Nil(t, rows[0].RejectionReason)

	edits, err := repo.PendingEditsFor(ctx, []uuid.UUID{business.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, edits, 1)

	removed, err := repo.DeletePendingEdit(ctx, business.ID, enums.PendingEditStatusRejected)
	require.NoError(t, err)
	assert.False(t, removed, "delete is guarded by status")
}

func TestUpdateFlagsPinning(t *testing.T) {
	conn := dbtest.Open(t)
	tax := dbtest.MustSeedTaxonomy(t, conn, "netanya", nil, "electricians", nil)
	business := dbtest.MustCreateBusiness(t, conn, dbtest.NewBusiness(tax.Category.ID, tax.City.ID))
	repo := NewRepository(conn)
	ctx := context.Background()

	pinned, order := true, 3
	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{IsPinned: &pinned, PinnedOrder: &order}))
	stored, err := repo.FindByID(ctx, business.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPinned)
	require.NotNil(t, stored.PinnedOrder)
	assert.Equal(t, 3, *stored.PinnedOrder)

	unpinned := false
	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{IsPinned: &unpinned}))
	stored, err = repo.FindByID(ctx, business.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPinned)
	assert.Nil(t, stored.PinnedOrder)

	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{}))
}

func TestUpdateFlagsPinnedOrderOnlyReordersPinnedListings(t *testing.T) {
	conn := dbtest.Open(t)
	tax := dbtest.MustSeedTaxonomy(t, conn, "netanya", nil, "electricians", nil)
	business := dbtest.MustCreateBusiness(t, conn, dbtest.NewBusiness(tax.Category.ID, tax.City.ID))
	repo := NewRepository(conn)
	ctx := context.Background()

	order := 2
	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{PinnedOrder: &order}))
	stored, err := repo.FindByID(ctx, business.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPinned)
	assert.Nil(t, stored.PinnedOrder)

	pinned := true
	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{IsPinned: &pinned}))
	reorder := 5
	require.NoError(t, repo.UpdateFlags(ctx, business.ID, FlagsInput{PinnedOrder: &reorder}))
	stored, err = repo.FindByID(ctx, business.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPinned)
	require.NotNil(t, stored.PinnedOrder)
	assert.Equal(t, 5, *stored.PinnedOrder)
}
