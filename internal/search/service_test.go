package search

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
)

type stubListingsRepo struct {
	rows     func(Filter) []models.Business
	findErr  error
	countErr error
	finds    []Filter
	counts   []Filter
}

func (s *stubListingsRepo) FindListings(ctx context.Context, filter Filter, limit int) ([]models.Business, error) {
	s.finds = append(s.finds, filter)
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.rows == nil {
		return nil, nil
	}
	return s.rows(filter), nil
}

func (s *stubListingsRepo) CountListings(ctx context.Context, filter Filter) (int64, error) {
	s.counts = append(s.counts, filter)
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.rows(filter))), nil
}

func (s *stubListingsRepo) RatingsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RatingSummary, error) {
	return map[uuid.UUID]RatingSummary{}, nil
}

type stubTaxonomy struct {
	category *models.Category
	city     *models.City
}

func (s stubTaxonomy) CategoryByRef(ctx context.Context, ref string) (*models.Category, error) {
	if s.category == nil || (ref != s.category.Slug && ref != s.category.ID.String()) {
		return nil, gorm.ErrRecordNotFound
	}
	return s.category, nil
}

func (s stubTaxonomy) SubcategoryByRef(ctx context.Context, categoryID uuid.UUID, ref string) (*models.Subcategory, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s stubTaxonomy) CityByRef(ctx context.Context, ref string) (*models.City, error) {
	if s.city == nil || ref != s.city.Slug {
		return nil, errors.New("connection refused")
	}
	return s.city, nil
}

func (s stubTaxonomy) NeighborhoodByRef(ctx context.Context, cityID uuid.UUID, ref string) (*models.Neighborhood, error) {
	return nil, gorm.ErrRecordNotFound
}

type memoryCache struct {
	sets  map[string]*ResultSet
	loads int
}

func (m *memoryCache) Load(ctx context.Context, fp string) (*ResultSet, string, error) {
	m.loads++
	return m.sets[fp], "0", nil
}

func (m *memoryCache) Store(ctx context.Context, generation, fp string, rs *ResultSet) error {
	m.sets[fp] = rs
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "search-test", Output: io.Discard})
}

func newTestService(t *testing.T, repo listingsRepository, cache resultCache) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Taxonomy: stubTaxonomy{},
		Cache:    cache,
		Logger:   testLogger(),
		Config:   config.SearchConfig{MaxResults: 100},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func business(id uuid.UUID) models.Business {
	return models.Business{ID: id, Status: enums.BusinessStatusApproved, IsVisible: true}
}

func fullQuery() Query {
	sub := uuid.New()
	nbh := uuid.New()
	return Query{CategoryID: uuid.New(), SubcategoryID: &sub, NeighborhoodID: &nbh, CityID: uuid.New()}
}

func TestResolveExactNeverComputesFallbacks(t *testing.T) {
	q := fullQuery()
	repo := &stubListingsRepo{rows: func(f Filter) []models.Business {
		return []models.Business{business(uuid.New())}
	}}
	svc := newTestService(t, repo, nil)

	rs, err := svc.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rs.Tier != enums.SearchTierExact || len(rs.Exact) != 1 {
		t.Fatalf("expected exact tier, got %s with %d", rs.Tier, len(rs.Exact))
	}
	if rs.HasPrimaryFallback || rs.HasSecondaryFallback {
		t.Fatal("exact hit must not report fallbacks")
	}
	if len(repo.finds) != 1 {
		t.Fatalf("expected a single lookup, got %d", len(repo.finds))
	}
}

func TestResolveFallbacksAreIndependent(t *testing.T) {
	q := fullQuery()
	cases := []struct {
		name          string
		primary       int
		secondary     int
		wantTier      enums.SearchTier
		wantPrimary   bool
		wantSecondary bool
	}{
		{"primary only", 1, 0, enums.SearchTierPrimaryFallback, true, false},
		{"secondary only", 0, 2, enums.SearchTierSecondaryFallback, false, true},
		{"both", 1, 3, enums.SearchTierPrimaryFallback, true, true},
		{"neither", 0, 0, enums.SearchTierEmpty, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubListingsRepo{rows: func(f Filter) []models.Business {
				n := 0
				switch {
				case f.NeighborhoodID == nil && f.SubcategoryID != nil:
					n = tc.primary
				case f.SubcategoryID == nil && f.NeighborhoodID != nil:
					n = tc.secondary
				}
				out := make([]models.Business, n)
				for i := range out {
					out[i] = business(uuid.New())
				}
				return out
			}}
			svc := newTestService(t, repo, nil)

			rs, err := svc.Resolve(context.Background(), q)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if rs.Tier != tc.wantTier {
				t.Fatalf("expected tier %s got %s", tc.wantTier, rs.Tier)
			}
			if rs.HasPrimaryFallback != tc.wantPrimary || rs.HasSecondaryFallback != tc.wantSecondary {
				t.Fatalf("unexpected flags primary=%v secondary=%v", rs.HasPrimaryFallback, rs.HasSecondaryFallback)
			}
			if len(repo.finds) != 3 {
				t.Fatalf("expected exact plus both fallbacks, got %d lookups", len(repo.finds))
			}
			if tc.wantSecondary && rs.Totals[enums.SearchTierSecondaryFallback] != int64(tc.secondary) {
				t.Fatalf("secondary total must come from the same predicate, got %d", rs.Totals[enums.SearchTierSecondaryFallback])
			}
		})
	}
}

func TestResolveNoFallbackWithoutBothFilters(t *testing.T) {
	q := fullQuery()
	q.NeighborhoodID = nil
	repo := &stubListingsRepo{rows: func(Filter) []models.Business { return nil }}
	svc := newTestService(t, repo, nil)

	rs, err := svc.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rs.Tier != enums.SearchTierEmpty || len(repo.finds) != 1 {
		t.Fatalf("expected empty after exact only, got %s with %d lookups", rs.Tier, len(repo.finds))
	}
}

func TestResolveStoreFailureIsNotEmpty(t *testing.T) {
	repo := &stubListingsRepo{findErr: errors.New("connection reset")}
	svc := newTestService(t, repo, nil)

	rs, err := svc.Resolve(context.Background(), fullQuery())
	if rs != nil {
		t.Fatal("expected no result set on failure")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestResolveCountFailureIsDependency(t *testing.T) {
	repo := &stubListingsRepo{
		rows:     func(Filter) []models.Business { return []models.Business{business(uuid.New())} },
		countErr: errors.New("timeout"),
	}
	svc := newTestService(t, repo, nil)

	if _, err := svc.Resolve(context.Background(), fullQuery()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestResolveValidatesQuery(t *testing.T) {
	svc := newTestService(t, &stubListingsRepo{}, nil)
	_, err := svc.Resolve(context.Background(), Query{})
	fields := pkgerrors.Fields(err)
	if _, ok := fields["category"]; !ok {
		t.Fatalf("expected category error, got %v", err)
	}
	if _, ok := fields["city"]; !ok {
		t.Fatalf("expected city error, got %v", err)
	}
}

func TestResolveUsesCache(t *testing.T) {
	repo := &stubListingsRepo{rows: func(Filter) []models.Business {
		return []models.Business{business(uuid.New())}
	}}
	cache := &memoryCache{sets: map[string]*ResultSet{}}
	svc := newTestService(t, repo, cache)
	q := fullQuery()

	first, err := svc.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := svc.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if len(repo.finds) != 1 {
		t.Fatalf("expected cached second resolve, got %d lookups", len(repo.finds))
	}
	if first.Exact[0].ID != second.Exact[0].ID {
		t.Fatal("cached result differs from computed result")
	}
	second.Exact[0].IsPinned = true
	if cache.sets[fingerprint(q, false, 100)].Exact[0].IsPinned {
		t.Fatal("callers must not be able to mutate the cached set")
	}
}

func TestSearchResolvesReferences(t *testing.T) {
	category := &models.Category{ID: uuid.New(), Slug: "electricians"}
	city := &models.City{ID: uuid.New(), Slug: "netanya"}
	repo := &stubListingsRepo{rows: func(f Filter) []models.Business {
		if f.CategoryID != category.ID || f.CityID != city.ID {
			t.Fatalf("unexpected filter %+v", f)
		}
		return nil
	}}
	svc, err := NewService(ServiceParams{Repo: repo, Taxonomy: stubTaxonomy{category: category, city: city}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	rs, err := svc.Search(ctx, Input{Category: " electricians ", City: "netanya"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if rs.Tier != enums.SearchTierEmpty {
		t.Fatalf("expected empty tier, got %s", rs.Tier)
	}

	if _, err := svc.Search(ctx, Input{Category: "plumbers", City: "netanya"}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found category, got %v", err)
	}
	if _, err := svc.Search(ctx, Input{Category: "electricians", City: "netanya", Subcategory: "unknown"}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found subcategory, got %v", err)
	}
	if _, err := svc.Search(ctx, Input{Category: "electricians", City: "haifa"}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error for failing city lookup, got %v", err)
	}
	if _, err := svc.Search(ctx, Input{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveShufflesTopBandButCachesRankedOrder(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	repo := &stubListingsRepo{rows: func(Filter) []models.Business {
		return []models.Business{business(high), business(low)}
	}}
	cache := &memoryCache{sets: map[string]*ResultSet{}}
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Taxonomy: stubTaxonomy{},
		Cache:    cache,
		Logger:   testLogger(),
		Shuffle:  reverse,
		Config:   config.SearchConfig{MaxResults: 100, TopBandSize: 2},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	q := fullQuery()

	for i := 0; i < 2; i++ {
		rs, err := svc.Resolve(context.Background(), q)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if rs.Exact[0].ID != high || rs.Exact[1].ID != low {
			t.Fatalf("resolve %d: expected shuffled top band, got %s, %s", i, rs.Exact[0].ID, rs.Exact[1].ID)
		}
	}
	cached := cache.sets[fingerprint(q, false, 100)]
	if cached.Exact[0].ID != low {
		t.Fatalf("expected cached set in ranked order, got %s first", cached.Exact[0].ID)
	}
}
