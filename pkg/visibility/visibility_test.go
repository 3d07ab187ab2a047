package visibility

import (
	"testing"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/errors"
)

func baseBusiness() *models.Business {
	return &models.Business{
		Status:    enums.BusinessStatusApproved,
		IsVisible: true,
	}
}

func TestEnsureBusinessVisible(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		err := EnsureBusinessVisible(nil, false)
		if err == nil || errors.As(err).Code() != errors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("pending", func(t *testing.T) {
		biz := baseBusiness()
		biz.Status = enums.BusinessStatusPending
		err := EnsureBusinessVisible(biz, false)
		if err == nil || errors.As(err).Code() != errors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("rejected but visible flag set", func(t *testing.T) {
		biz := baseBusiness()
		biz.Status = enums.BusinessStatusRejected
		err := EnsureBusinessVisible(biz, false)
		if err == nil || errors.As(err).Code() != errors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("hidden", func(t *testing.T) {
		biz := baseBusiness()
		biz.IsVisible = false
		if err := EnsureBusinessVisible(biz, false); err == nil {
			t.Fatal("expected hidden listing to be gated")
		}
	})
	t.Run("test listing", func(t *testing.T) {
		biz := baseBusiness()
		biz.IsTest = true
		if err := EnsureBusinessVisible(biz, false); err == nil {
			t.Fatal("expected test listing to be gated")
		}
		if err := EnsureBusinessVisible(biz, true); err != nil {
			t.Fatalf("expected test listing allowed when included, got %v", err)
		}
	})
	t.Run("success", func(t *testing.T) {
		if err := EnsureBusinessVisible(baseBusiness(), false); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})
}
