package controllers

import (
	"net/http"

	"github.com/citydirectory/directory-backend/api/responses"
	"github.com/citydirectory/directory-backend/api/validators"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
)

const maxRefLength = 100

// Search resolves the public listing search. Category and city are required;
// every reference accepts a UUID or a slug.
func Search(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search service unavailable"))
			return
		}

		q := r.URL.Query()
		in := search.Input{
			Category:     validators.SanitizeString(q.Get("category"), maxRefLength),
			Subcategory:  validators.SanitizeString(q.Get("subcategory"), maxRefLength),
			Neighborhood: validators.SanitizeString(q.Get("neighborhood"), maxRefLength),
			City:         validators.SanitizeString(q.Get("city"), maxRefLength),
		}

		view, err := parseView(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in.View = view

		rs, err := svc.Search(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rs)
	}
}

func parseView(r *http.Request) (search.View, error) {
	q := r.URL.Query()
	fields := pkgerrors.FieldErrors{}

	sort, err := enums.ParseSortOption(q.Get("sort"))
	if err != nil {
		fields.Add("sort", "must be one of recommended, rating, newest, alphabetical")
	}
	locale, err := enums.ParseLocale(q.Get("locale"))
	if err != nil {
		fields.Add("locale", "must be he or ru")
	}
	verified, err := validators.ParseQueryBool(r, "verified")
	if err != nil {
		fields.Add("verified", "must be a boolean")
	}
	withReviews, err := validators.ParseQueryBool(r, "with_reviews")
	if err != nil {
		fields.Add("with_reviews", "must be a boolean")
	}
	if err := fields.Err(); err != nil {
		return search.View{}, err
	}

	return search.View{
		Sort:            sort,
		Locale:          locale,
		VerifiedOnly:    verified,
		WithReviewsOnly: withReviews,
	}, nil
}
