package businesses_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/internal/businesses"
	"github.com/citydirectory/directory-backend/internal/moderation"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/internal/taxonomy"
	"github.com/citydirectory/directory-backend/pkg/db"
	"github.com/citydirectory/directory-backend/pkg/db/dbtest"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/outbox"
	"github.com/citydirectory/directory-backend/pkg/types"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) BumpSearchGeneration(ctx context.Context) error {
	c.calls++
	return nil
}

type fixture struct {
	conn        *gorm.DB
	svc         businesses.Service
	tax         dbtest.Taxonomy
	invalidator *countingInvalidator
	owner       businesses.Actor
	admin       businesses.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	tax := dbtest.MustSeedTaxonomy(t, conn, "netanya", []string{"merkaz", "agamim"}, "electricians", []string{"ac-installation", "wiring"})
	logg := logger.New(logger.Options{ServiceName: "businesses-test", Output: io.Discard})
	invalidator := &countingInvalidator{}

	svc, err := businesses.NewService(businesses.ServiceParams{
		Repo:        businesses.NewRepository(conn),
		Tx:          db.NewFromConn(conn),
		Outbox:      outbox.NewService(outbox.NewRepository(conn), logg),
		Taxonomy:    taxonomy.NewRepository(conn),
		Ratings:     search.NewRepository(conn),
		Invalidator: invalidator,
		Logger:      logg,
	})
	require.NoError(t, err)

	return &fixture{
		conn:        conn,
		svc:         svc,
		tax:         tax,
		invalidator: invalidator,
		owner:       businesses.Actor{UserID: uuid.New(), Role: enums.ActorRoleOwner},
		admin:       businesses.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
}

func (f *fixture) fields() types.ListingFields {
	phone := "+972-9-123-4567"
	return types.ListingFields{
		Name:          types.Localized{He: "חשמלאי העיר", Ru: "Городской электрик"},
		CategoryID:    f.tax.Category.ID,
		CityID:        f.tax.City.ID,
		ServesAllCity: true,
		Phone:         &phone,
	}
}

func (f *fixture) submit(t *testing.T) *businesses.ManagedBusinessDTO {
	t.Helper()
	created, err := f.svc.Submit(context.Background(), f.owner, f.fields())
	require.NoError(t, err)
	return created
}

func (f *fixture) approved(t *testing.T) *businesses.ManagedBusinessDTO {
	t.Helper()
	created := f.submit(t)
	approved, err := f.svc.Approve(context.Background(), f.admin, created.ID, businesses.ApproveInput{})
	require.NoError(t, err)
	return approved
}

func (f *fixture) business(t *testing.T, id uuid.UUID) models.Business {
	t.Helper()
	var b models.Business
	require.NoError(t, f.conn.First(&b, "id = ?", id.String()).Error)
	return b
}

func (f *fixture) editCount(t *testing.T, businessID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.PendingEdit{}).Where("business_id = ?", businessID.String()).Count(&count).Error)
	return count
}

func (f *fixture) eventTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&events).Error)
	out := make([]enums.OutboxEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func TestSubmitCreatesPendingListing(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t)

	assert.Equal(t, enums.BusinessStatusPending, created.Status)
	require.NotNil(t, created.OwnerID)
	assert.Equal(t, f.owner.UserID, *created.OwnerID)

	stored := f.business(t, created.ID)
	assert.False(t, stored.IsVisible)
	assert.Equal(t, "חשמלאי העיר", stored.Name.He)
	assert.Equal(t, []enums.OutboxEventType{enums.EventBusinessSubmitted}, f.eventTypes(t))

	_, err := f.svc.GetPublic(context.Background(), created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "pending listing must stay private")
}

func TestAdminSubmitHasNoOwner(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Submit(context.Background(), f.admin, f.fields())
	require.NoError(t, err)
	assert.Nil(t, created.OwnerID)
}

func TestSubmitRequiresContactMethod(t *testing.T) {
	f := newFixture(t)
	fields := f.fields()
	fields.Phone = nil
	fields.WhatsappNumber = nil

	_, err := f.svc.Submit(context.Background(), f.owner, fields)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{moderation.FieldContact: "phone or whatsapp number is required"}, pkgerrors.Fields(err))
}

func TestSubmitChecksTaxonomyMembership(t *testing.T) {
	f := newFixture(t)
	other := dbtest.MustSeedTaxonomy(t, f.conn, "haifa", []string{"carmel"}, "plumbers", []string{"boilers"})

	fields := f.fields()
	fields.ServesAllCity = false
	fields.NeighborhoodID = ptr(other.Neighborhoods["carmel"].ID)
	fields.SubcategoryID = ptr(other.Subcategories["boilers"].ID)

	_, err := f.svc.Submit(context.Background(), f.owner, fields)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.Fields(err)
	assert.Contains(t, details, moderation.FieldNeighborhood)
	assert.Contains(t, details, moderation.FieldSubcategory)
}

func TestApprovePublishesListing(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)

	assert.Equal(t, enums.BusinessStatusApproved, approved.Status)
	assert.True(t, approved.IsVisible)
	require.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, 1, f.invalidator.calls)

	listing, err := f.svc.GetPublic(context.Background(), approved.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.ID, listing.ID)
	assert.Equal(t, []enums.OutboxEventType{enums.EventBusinessSubmitted, enums.EventBusinessStatusChanged}, f.eventTypes(t))
}

func TestApproveHidden(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t)
	hidden := false
	approved, err := f.svc.Approve(context.Background(), f.admin, created.ID, businesses.ApproveInput{Visible: &hidden})
	require.NoError(t, err)
	assert.False(t, approved.IsVisible)

	_, err = f.svc.GetPublic(context.Background(), created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRejectThenResubmitClearsRejection(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t)
	ctx := context.Background()

	rejected, err := f.svc.Reject(ctx, f.admin, created.ID, ptr("  missing opening hours "))
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "missing opening hours", *rejected.RejectionReason)
	require.NotNil(t, rejected.ReviewedAt)

	fields := f.fields()
	fields.OpeningHours = types.Localized{He: "א-ה 8-17"}
	resubmitted, err := f.svc.UpdateOwned(ctx, f.owner, created.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusPending, resubmitted.Status)

	stored := f.business(t, created.ID)
	assert.Equal(t, enums.BusinessStatusPending, stored.Status)
	assert.Nil(t, stored.RejectionReason)
	assert.Nil(t, stored.ReviewedAt)
	assert.Equal(t, "א-ה 8-17", stored.OpeningHours.He)
}

func TestOwnerEditOnPendingListingIsInPlace(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t)

	fields := f.fields()
	fields.Name.He = "שם מתוקן"
	updated, err := f.svc.UpdateOwned(context.Background(), f.owner, created.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, enums.BusinessStatusPending, updated.Status)
	assert.Nil(t, updated.PendingEdit)
	assert.Equal(t, "שם מתוקן", f.business(t, created.ID).Name.He)
	assert.Zero(t, f.editCount(t, created.ID))
}

func TestOwnerEditOnApprovedListingLeavesLiveRowUntouched(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)
	before := f.business(t, approved.ID)
	ctx := context.Background()

	first := f.fields()
	first.Name.He = "שם ראשון"
	result, err := f.svc.UpdateOwned(ctx, f.owner, approved.ID, first)
	require.NoError(t, err)
	require.NotNil(t, result.PendingEdit)
	assert.Equal(t, enums.PendingEditStatusPending, result.PendingEdit.Status)

	second := f.fields()
	second.Name.He = "שם שני"
	result, err = f.svc.ProposeEdit(ctx, f.owner, approved.ID, second)
	require.NoError(t, err)
	assert.Equal(t, "שם שני", result.PendingEdit.Changes.Name.He)

	after := f.business(t, approved.ID)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, enums.BusinessStatusApproved, after.Status)
	assert.EqualValues(t, 1, f.editCount(t, approved.ID), "last write overwrites the single edit row")

	listing, err := f.svc.GetPublic(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Name.He, listing.Name.He)
}

func TestApproveEditMergesAndRemoves(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)
	ctx := context.Background()

	proposal := f.fields()
	proposal.Name.Ru = "Новое имя"
	proposal.Tags = []string{" AC ", "24-7"}
	_, err := f.svc.UpdateOwned(ctx, f.owner, approved.ID, proposal)
	require.NoError(t, err)
	calls := f.invalidator.calls

	merged, err := f.svc.ApproveEdit(ctx, f.admin, approved.ID)
	require.NoError(t, err)
	assert.Nil(t, merged.PendingEdit)
	assert.Equal(t, calls+1, f.invalidator.calls)

	stored := f.business(t, approved.ID)
	assert.Equal(t, "Новое имя", stored.Name.Ru)
	assert.Equal(t, []string{"ac", "24-7"}, []string(stored.Tags))
	assert.Equal(t, enums.BusinessStatusApproved, stored.Status)
	assert.Zero(t, f.editCount(t, approved.ID))
}

func TestRejectEditThenDismiss(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)
	before := f.business(t, approved.ID)
	ctx := context.Background()

	proposal := f.fields()
	proposal.Name.He = "לא יאושר"
	_, err := f.svc.UpdateOwned(ctx, f.owner, approved.ID, proposal)
	require.NoError(t, err)

	rejected, err := f.svc.RejectEdit(ctx, f.admin, approved.ID, ptr("name does not match signage"))
	require.NoError(t, err)
	require.NotNil(t, rejected.PendingEdit)
	assert.Equal(t, enums.PendingEditStatusRejected, rejected.PendingEdit.Status)
	require.NotNil(t, rejected.PendingEdit.RejectionReason)
	assert.Equal(t, "name does not match signage", *rejected.PendingEdit.RejectionReason)
	assert.Equal(t, before.Name, f.business(t, approved.ID).Name)

	owned, err := f.svc.ListOwned(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.NotNil(t, owned[0].PendingEdit)
	assert.Equal(t, enums.PendingEditStatusRejected, owned[0].PendingEdit.Status)

	require.NoError(t, f.svc.DismissEdit(ctx, f.owner, approved.ID))
	assert.Zero(t, f.editCount(t, approved.ID))

	err = f.svc.DismissEdit(ctx, f.owner, approved.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDismissPendingEditIsIllegal(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)
	ctx := context.Background()

	_, err := f.svc.UpdateOwned(ctx, f.owner, approved.ID, f.fields())
	require.NoError(t, err)

	err = f.svc.DismissEdit(ctx, f.owner, approved.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.EqualValues(t, 1, f.editCount(t, approved.ID))
}

func TestIllegalTransitionsAreStateConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.approved(t)
	pending := f.submit(t)

	_, err := f.svc.Approve(ctx, f.admin, approved.ID, businesses.ApproveInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "approve twice")

	_, err = f.svc.Reject(ctx, f.admin, approved.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "reject approved")

	_, err = f.svc.Resubmit(ctx, f.owner, pending.ID, f.fields())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "resubmit pending")

	_, err = f.svc.ApproveEdit(ctx, f.admin, approved.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "approve missing edit")

	_, err = f.svc.Approve(ctx, f.admin, uuid.New(), businesses.ApproveInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown business")
}

func TestOwnershipAndRolesEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.submit(t)
	stranger := businesses.Actor{UserID: uuid.New(), Role: enums.ActorRoleOwner}

	_, err := f.svc.UpdateOwned(ctx, stranger, created.ID, f.fields())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.GetManaged(ctx, stranger, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Approve(ctx, f.owner, created.ID, businesses.ApproveInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	managed, err := f.svc.GetManaged(ctx, f.admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, managed.ID)
}

func TestRejectReasonIsCapped(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t)
	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.svc.Reject(context.Background(), f.admin, created.ID, ptr(string(long)))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.Fields(err), moderation.FieldReason)
	assert.Equal(t, enums.BusinessStatusPending, f.business(t, created.ID).Status)
}

func TestAdminUpdateSetsFlagsAndFields(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)

	fields := f.fields()
	fields.Name.He = "שם מנהל"
	updated, err := f.svc.AdminUpdate(context.Background(), f.admin, approved.ID, businesses.AdminUpdateInput{
		Fields: &fields,
		Flags: businesses.FlagsInput{
			IsPinned:    ptr(true),
			PinnedOrder: ptr(2),
			IsVerified:  ptr(true),
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsPinned)
	require.NotNil(t, updated.PinnedOrder)
	assert.Equal(t, 2, *updated.PinnedOrder)
	assert.True(t, updated.IsVerified)
	assert.Equal(t, "שם מנהל", updated.Fields.Name.He)
	assert.Equal(t, enums.BusinessStatusApproved, updated.Status)

	_, err = f.svc.AdminUpdate(context.Background(), f.admin, approved.ID, businesses.AdminUpdateInput{
		Flags: businesses.FlagsInput{PinnedOrder: ptr(-1)},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestModerationQueuePagesOldestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		b := dbtest.MustCreateBusiness(t, f.conn, dbtest.NewBusiness(f.tax.Category.ID, f.tax.City.ID), func(b *models.Business) {
			b.Status = enums.BusinessStatusPending
			b.IsVisible = false
			b.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		})
		ids = append(ids, b.ID)
	}
	dbtest.MustCreateBusiness(t, f.conn, dbtest.NewBusiness(f.tax.Category.ID, f.tax.City.ID))

	ctx := context.Background()
	first, err := f.svc.ListModerationQueue(ctx, businesses.QueueParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Businesses, 2)
	assert.Equal(t, ids[0], first.Businesses[0].ID)
	assert.Equal(t, ids[1], first.Businesses[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := f.svc.ListModerationQueue(ctx, businesses.QueueParams{Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Businesses, 1)
	assert.Equal(t, ids[2], second.Businesses[0].ID)
	assert.Empty(t, second.Cursor)

	_, err = f.svc.ListModerationQueue(ctx, businesses.QueueParams{Kind: "everything"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestModerationQueueListsPendingEdits(t *testing.T) {
	f := newFixture(t)
	approved := f.approved(t)
	_, err := f.svc.UpdateOwned(context.Background(), f.owner, approved.ID, f.fields())
	require.NoError(t, err)

	page, err := f.svc.ListModerationQueue(context.Background(), businesses.QueueParams{Kind: businesses.QueueEdits})
	require.NoError(t, err)
	require.Len(t, page.Edits, 1)
	assert.Equal(t, approved.ID, page.Edits[0].BusinessID)
	assert.Empty(t, page.Businesses)
}

func ptr[T any](v T) *T { return &v }
