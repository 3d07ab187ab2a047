package visibility

import (
	"github.com/citydirectory/directory-backend/pkg/db/models"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
)

// EnsureBusinessVisible gates public reads so pending, rejected, hidden and
// test listings never leak outside moderation and owner surfaces.
func EnsureBusinessVisible(business *models.Business, includeTest bool) error {
	if business == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	if !business.Status.IsPublic() {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	if !business.IsVisible {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	if business.IsTest && !includeTest {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	return nil
}
