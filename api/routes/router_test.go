package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/citydirectory/directory-backend/internal/businesses"
	"github.com/citydirectory/directory-backend/internal/reviews"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/internal/taxonomy"
	pkgAuth "github.com/citydirectory/directory-backend/pkg/auth"
	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
	"github.com/citydirectory/directory-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSearchService struct {
	lastInput search.Input
}

func (s *stubSearchService) Search(ctx context.Context, in search.Input) (*search.ResultSet, error) {
	s.lastInput = in
	return &search.ResultSet{Tier: enums.SearchTierEmpty}, nil
}

func (s *stubSearchService) Resolve(ctx context.Context, q search.Query) (*search.ResultSet, error) {
	return &search.ResultSet{Tier: enums.SearchTierEmpty}, nil
}

// stubBusinessesService embeds the interface so unused methods panic if a
// route reaches them unexpectedly.
type stubBusinessesService struct {
	businesses.Service
	lastActor businesses.Actor
}

func (s *stubBusinessesService) ListOwned(ctx context.Context, actor businesses.Actor) ([]businesses.ManagedBusinessDTO, error) {
	s.lastActor = actor
	return []businesses.ManagedBusinessDTO{}, nil
}

func (s *stubBusinessesService) ListModerationQueue(ctx context.Context, params businesses.QueueParams) (*businesses.QueueResult, error) {
	return &businesses.QueueResult{}, nil
}

func (s *stubBusinessesService) Approve(ctx context.Context, actor businesses.Actor, businessID uuid.UUID, in businesses.ApproveInput) (*businesses.ManagedBusinessDTO, error) {
	s.lastActor = actor
	return &businesses.ManagedBusinessDTO{ID: businessID, Status: enums.BusinessStatusApproved}, nil
}

type stubReviewsService struct {
	reviews.Service
}

func (stubReviewsService) List(ctx context.Context, businessID uuid.UUID, params pagination.Params) (*reviews.ListResult, error) {
	return &reviews.ListResult{Items: []reviews.ReviewDTO{}}, nil
}

type stubTaxonomyService struct {
	taxonomy.Service
}

func (stubTaxonomyService) ListCities(ctx context.Context) ([]taxonomy.CityDTO, error) {
	return []taxonomy.CityDTO{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

type testRouter struct {
	http.Handler
	search     *stubSearchService
	businesses *stubBusinessesService
}

func newTestRouter(cfg *config.Config, dbP stubPinger) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	registry := prometheus.NewRegistry()
	metrics.NewSearchMetrics(registry).ObserveCache(true)

	searchSvc := &stubSearchService{}
	businessSvc := &stubBusinessesService{}
	handler := NewRouter(cfg, logg, dbP, nil, registry, Services{
		Search:     searchSvc,
		Businesses: businessSvc,
		Reviews:    stubReviewsService{},
		Taxonomy:   stubTaxonomyService{},
	})
	return testRouter{Handler: handler, search: searchSvc, businesses: businessSvc}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyReportsRedisDisabled(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"disabled"`) {
		t.Fatalf("expected redis disabled in body: %s", resp.Body.String())
	}
}

func TestHealthReadyFailsWhenDatabaseDown(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{err: errors.New("dial tcp: refused")})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"db":"down"`) {
		t.Fatalf("expected db down in body: %s", resp.Body.String())
	}
}

func TestMetricsEndpointExposesRegistry(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "directory_search_cache_total") {
		t.Fatalf("expected search metrics in scrape output")
	}
}

func TestPublicSearchPassesQuery(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?category=plumbing&city=haifa&sort=rating&locale=ru&verified=true", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	in := router.search.lastInput
	if in.Category != "plumbing" || in.City != "haifa" {
		t.Fatalf("unexpected refs %+v", in)
	}
	if in.View.Sort != enums.SortRating || in.View.Locale != enums.LocaleRussian || !in.View.VerifiedOnly {
		t.Fatalf("unexpected view %+v", in.View)
	}
}

func TestPublicSearchRejectsUnknownSort(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?category=plumbing&city=haifa&sort=popular", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPublicReadsNeedNoToken(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	for _, path := range []string{
		"/api/v1/cities",
		"/api/v1/businesses/" + uuid.NewString() + "/reviews",
	} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestOwnerGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/owner/businesses", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOwnerGroupRequiresOwnerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/owner/businesses", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin on owner routes got %d", resp.Code)
	}

	ownerID := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/owner/businesses", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleOwner, ownerID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner got %d", resp.Code)
	}
	if router.businesses.lastActor.UserID != ownerID {
		t.Fatalf("expected actor %s got %s", ownerID, router.businesses.lastActor.UserID)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	owner := httptest.NewRequest(http.MethodGet, "/api/admin/v1/moderation/queue", nil)
	owner.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleOwner, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, owner)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/moderation/queue", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, uuid.New()))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminApproveWithoutBody(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	adminID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/businesses/"+uuid.NewString()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, adminID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if router.businesses.lastActor.Role != enums.ActorRoleAdmin || router.businesses.lastActor.UserID != adminID {
		t.Fatalf("unexpected actor %+v", router.businesses.lastActor)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
