package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
)

type listingsRepository interface {
	FindListings(ctx context.Context, filter Filter, limit int) ([]models.Business, error)
	CountListings(ctx context.Context, filter Filter) (int64, error)
	RatingsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RatingSummary, error)
}

// taxonomyLookup resolves a UUID or slug reference. Child lookups are scoped to
// their parent, so a neighborhood of another city is reported as not found.
type taxonomyLookup interface {
	CategoryByRef(ctx context.Context, ref string) (*models.Category, error)
	SubcategoryByRef(ctx context.Context, categoryID uuid.UUID, ref string) (*models.Subcategory, error)
	CityByRef(ctx context.Context, ref string) (*models.City, error)
	NeighborhoodByRef(ctx context.Context, cityID uuid.UUID, ref string) (*models.Neighborhood, error)
}

// resultCache hands out the listing generation on Load; Store files a set
// under exactly that generation.
type resultCache interface {
	Load(ctx context.Context, fingerprint string) (*ResultSet, string, error)
	Store(ctx context.Context, generation, fingerprint string, rs *ResultSet) error
}

// Service resolves public searches.
type Service interface {
	Search(ctx context.Context, in Input) (*ResultSet, error)
	Resolve(ctx context.Context, q Query) (*ResultSet, error)
}

type ServiceParams struct {
	Repo     listingsRepository
	Taxonomy taxonomyLookup
	Cache    resultCache
	Metrics  *metrics.SearchMetrics
	Logger   *logger.Logger
	Config   config.SearchConfig
	Shuffle  Shuffler
}

type service struct {
	repo     listingsRepository
	taxonomy taxonomyLookup
	cache    resultCache
	metrics  *metrics.SearchMetrics
	logg     *logger.Logger
	cfg      config.SearchConfig
	shuffle  Shuffler
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Taxonomy == nil {
		return nil, fmt.Errorf("taxonomy lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shuffle == nil {
		params.Shuffle = rand.Shuffle
	}
	svc := &service{
		repo:     params.Repo,
		taxonomy: params.Taxonomy,
		metrics:  params.Metrics,
		logg:     params.Logger,
		cfg:      params.Config,
		shuffle:  params.Shuffle,
	}
	// a typed nil *Cache must not end up as a non-nil interface
	if c, ok := params.Cache.(*Cache); !ok || c != nil {
		svc.cache = params.Cache
	}
	return svc, nil
}

// Search resolves slug or id references, runs the resolver and applies the
// presentational view to every tier.
func (s *service) Search(ctx context.Context, in Input) (*ResultSet, error) {
	q, err := s.resolveRefs(ctx, in.trimmed())
	if err != nil {
		return nil, err
	}
	rs, err := s.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	rs.each(func(l []Listing) []Listing { return ApplyView(l, in.View) })
	return rs, nil
}

// Resolve runs the tiered lookup. Exact matches win outright; otherwise, when
// both subcategory and neighborhood were given, the two fallbacks are
// evaluated independently and either or both may be populated.
func (s *service) Resolve(ctx context.Context, q Query) (*ResultSet, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	fp := fingerprint(q, s.cfg.IncludeTestListings, s.cfg.MaxResults)
	rs, generation := s.loadCached(ctx, fp)
	hit := rs != nil
	if !hit {
		var err error
		rs, err = s.compute(ctx, q)
		if err != nil {
			return nil, err
		}
		s.storeCached(ctx, generation, fp, rs)
	}

	rs = rs.clone()
	rs.each(func(l []Listing) []Listing {
		return Rank(l, s.cfg.TopBandSize, s.shuffle)
	})

	s.metrics.ObserveResolve(rs.Tier.String(), time.Since(started))
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"tier":      rs.Tier,
		"cache_hit": hit,
		"category":  q.CategoryID.String(),
		"city":      q.CityID.String(),
	}), "search resolved")
	return rs, nil
}

func (s *service) compute(ctx context.Context, q Query) (*ResultSet, error) {
	rs := &ResultSet{Totals: map[enums.SearchTier]int64{}}

	exact, total, err := s.fetchTier(ctx, q.exact(s.cfg.IncludeTestListings))
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		rs.Exact = exact
		rs.Totals[enums.SearchTierExact] = total
		rs.settle()
		return rs, nil
	}

	if q.fallbackEligible() {
		primary, primaryTotal, err := s.fetchTier(ctx, q.primary(s.cfg.IncludeTestListings))
		if err != nil {
			return nil, err
		}
		secondary, secondaryTotal, err := s.fetchTier(ctx, q.secondary(s.cfg.IncludeTestListings))
		if err != nil {
			return nil, err
		}
		rs.PrimaryFallback = primary
		rs.SecondaryFallback = secondary
		if len(primary) > 0 {
			rs.Totals[enums.SearchTierPrimaryFallback] = primaryTotal
		}
		if len(secondary) > 0 {
			rs.Totals[enums.SearchTierSecondaryFallback] = secondaryTotal
		}
	}

	rs.settle()
	return rs, nil
}

// fetchTier loads, rates and sorts one tier. The total comes from the same
// predicate; it is only queried when the tier has rows.
func (s *service) fetchTier(ctx context.Context, filter Filter) ([]Listing, int64, error) {
	rows, err := s.repo.FindListings(ctx, filter, s.cfg.MaxResults)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find listings")
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	total, err := s.repo.CountListings(ctx, filter)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count listings")
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	ratings, err := s.repo.RatingsFor(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}

	listings := make([]Listing, len(rows))
	for i, row := range rows {
		listings[i] = NewListing(row, ratings[row.ID])
	}
	sortListings(listings)
	return listings, total, nil
}

// Cache failures degrade to a direct lookup. An empty generation means the
// result must not be stored.
func (s *service) loadCached(ctx context.Context, fp string) (*ResultSet, string) {
	if s.cache == nil {
		return nil, ""
	}
	rs, generation, err := s.cache.Load(ctx, fp)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "search cache read failed")
		return nil, ""
	}
	s.metrics.ObserveCache(rs != nil)
	return rs, generation
}

func (s *service) storeCached(ctx context.Context, generation, fp string, rs *ResultSet) {
	if s.cache == nil || generation == "" {
		return
	}
	if err := s.cache.Store(ctx, generation, fp, rs); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "search cache write failed")
	}
}

func (s *service) resolveRefs(ctx context.Context, in Input) (Query, error) {
	errs := pkgerrors.FieldErrors{}
	if in.Category == "" {
		errs.Add("category", "category is required")
	}
	if in.City == "" {
		errs.Add("city", "city is required")
	}
	if err := errs.Err(); err != nil {
		return Query{}, err
	}

	var q Query
	category, err := s.taxonomy.CategoryByRef(ctx, in.Category)
	if err != nil {
		return Query{}, lookupError(err, "category")
	}
	q.CategoryID = category.ID

	city, err := s.taxonomy.CityByRef(ctx, in.City)
	if err != nil {
		return Query{}, lookupError(err, "city")
	}
	q.CityID = city.ID

	if in.Subcategory != "" {
		sub, err := s.taxonomy.SubcategoryByRef(ctx, category.ID, in.Subcategory)
		if err != nil {
			return Query{}, lookupError(err, "subcategory")
		}
		q.SubcategoryID = &sub.ID
	}
	if in.Neighborhood != "" {
		n, err := s.taxonomy.NeighborhoodByRef(ctx, city.ID, in.Neighborhood)
		if err != nil {
			return Query{}, lookupError(err, "neighborhood")
		}
		q.NeighborhoodID = &n.ID
	}
	return q, nil
}

func lookupError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup "+entity)
}
