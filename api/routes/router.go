package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citydirectory/directory-backend/api/controllers"
	"github.com/citydirectory/directory-backend/api/middleware"
	"github.com/citydirectory/directory-backend/internal/businesses"
	"github.com/citydirectory/directory-backend/internal/reviews"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/internal/taxonomy"
	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/db"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/redis"
)

// Services groups the domain services the router dispatches to.
type Services struct {
	Search     search.Service
	Businesses businesses.Service
	Reviews    reviews.Service
	Taxonomy   taxonomy.Service
}

// NewRouter builds the HTTP surface. redisClient may be nil, which disables
// rate limiting and reports redis as disabled on readiness.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	var limiter redis.RateLimiter
	readiness := map[string]controllers.Pinger{"db": dbP, "redis": nil}
	if redisClient != nil {
		limiter = redisClient
		readiness["redis"] = redisClient
	}

	submissionPolicy := middleware.NewRateLimitPolicy(
		"submissions",
		cfg.RateLimit.SubmissionWindow,
		cfg.RateLimit.SubmissionLimit,
		cfg.RateLimit.SubmissionLimit,
	)
	reviewPolicy := middleware.NewRateLimitPolicy(
		"reviews",
		cfg.RateLimit.ReviewWindow,
		cfg.RateLimit.ReviewLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", controllers.Search(svc.Search, logg))
		r.Get("/cities", controllers.ListCities(svc.Taxonomy, logg))
		r.Get("/cities/{cityId}/neighborhoods", controllers.ListNeighborhoods(svc.Taxonomy, logg))
		r.Get("/categories", controllers.ListCategories(svc.Taxonomy, logg))

		r.Route("/businesses/{businessId}", func(r chi.Router) {
			r.Get("/", controllers.GetBusiness(svc.Businesses, logg))
			r.Get("/reviews", controllers.ListReviews(svc.Reviews, logg))
			r.With(middleware.RateLimit(reviewPolicy, limiter, logg)).Post("/reviews", controllers.CreateReview(svc.Reviews, logg))
		})

		r.Route("/owner/businesses", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.ActorRoleOwner))

			r.Get("/", controllers.ListOwnedBusinesses(svc.Businesses, logg))
			r.Get("/{businessId}", controllers.GetManagedBusiness(svc.Businesses, logg))
			r.Delete("/{businessId}/pending-edit", controllers.DismissPendingEdit(svc.Businesses, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(submissionPolicy, limiter, logg))
				r.Post("/", controllers.SubmitBusiness(svc.Businesses, logg))
				r.Put("/{businessId}", controllers.UpdateOwnedBusiness(svc.Businesses, logg))
				r.Post("/{businessId}/resubmit", controllers.ResubmitBusiness(svc.Businesses, logg))
				r.Put("/{businessId}/pending-edit", controllers.ProposeBusinessEdit(svc.Businesses, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

		r.Get("/moderation/queue", controllers.ModerationQueue(svc.Businesses, logg))

		r.Route("/businesses", func(r chi.Router) {
			r.Post("/", controllers.SubmitBusiness(svc.Businesses, logg))
			r.Get("/{businessId}", controllers.GetManagedBusiness(svc.Businesses, logg))
			r.Patch("/{businessId}", controllers.AdminUpdateBusiness(svc.Businesses, logg))
			r.Post("/{businessId}/approve", controllers.ApproveBusiness(svc.Businesses, logg))
			r.Post("/{businessId}/reject", controllers.RejectBusiness(svc.Businesses, logg))
			r.Post("/{businessId}/pending-edit/approve", controllers.ApprovePendingEdit(svc.Businesses, logg))
			r.Post("/{businessId}/pending-edit/reject", controllers.RejectPendingEdit(svc.Businesses, logg))
		})

		r.Post("/cities", controllers.CreateCity(svc.Taxonomy, logg))
		r.Post("/cities/{cityId}/neighborhoods", controllers.CreateNeighborhood(svc.Taxonomy, logg))
		r.Post("/categories", controllers.CreateCategory(svc.Taxonomy, logg))
		r.Post("/categories/{categoryId}/subcategories", controllers.CreateSubcategory(svc.Taxonomy, logg))
	})

	return r
}
