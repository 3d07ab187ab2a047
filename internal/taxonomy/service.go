package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/types"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type taxonomyRepository interface {
	CategoryByRef(ctx context.Context, ref string) (*models.Category, error)
	CityByRef(ctx context.Context, ref string) (*models.City, error)
	ListCities(ctx context.Context) ([]models.City, error)
	ListNeighborhoods(ctx context.Context, cityID uuid.UUID) ([]models.Neighborhood, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCity(ctx context.Context, city *models.City) error
	CreateNeighborhood(ctx context.Context, n *models.Neighborhood) error
	CreateCategory(ctx context.Context, category *models.Category) error
	CreateSubcategory(ctx context.Context, sub *models.Subcategory) error
}

// Service exposes the read side of the taxonomy plus admin creation.
type Service interface {
	ListCities(ctx context.Context) ([]CityDTO, error)
	ListNeighborhoods(ctx context.Context, cityRef string) ([]NeighborhoodDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCity(ctx context.Context, input NodeInput) (*CityDTO, error)
	CreateNeighborhood(ctx context.Context, cityRef string, input NodeInput) (*NeighborhoodDTO, error)
	CreateCategory(ctx context.Context, input NodeInput) (*CategoryDTO, error)
	CreateSubcategory(ctx context.Context, categoryRef string, input NodeInput) (*SubcategoryDTO, error)
}

type service struct {
	repo taxonomyRepository
}

func NewService(repo taxonomyRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("taxonomy repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCities(ctx context.Context) ([]CityDTO, error) {
	rows, err := s.repo.ListCities(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cities")
	}
	out := make([]CityDTO, len(rows))
	for i, row := range rows {
		out[i] = toCityDTO(row)
	}
	return out, nil
}

func (s *service) ListNeighborhoods(ctx context.Context, cityRef string) ([]NeighborhoodDTO, error) {
	city, err := s.repo.CityByRef(ctx, cityRef)
	if err != nil {
		return nil, lookupError(err, "city")
	}
	rows, err := s.repo.ListNeighborhoods(ctx, city.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list neighborhoods")
	}
	out := make([]NeighborhoodDTO, len(rows))
	for i, row := range rows {
		out[i] = toNeighborhoodDTO(row)
	}
	return out, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, len(rows))
	for i, row := range rows {
		out[i] = toCategoryDTO(row)
	}
	return out, nil
}

func (s *service) CreateCity(ctx context.Context, input NodeInput) (*CityDTO, error) {
	input, err := input.validated()
	if err != nil {
		return nil, err
	}
	city := &models.City{Name: input.Name, Slug: input.Slug}
	if err := s.repo.CreateCity(ctx, city); err != nil {
		return nil, createError(err, "city")
	}
	dto := toCityDTO(*city)
	return &dto, nil
}

func (s *service) CreateNeighborhood(ctx context.Context, cityRef string, input NodeInput) (*NeighborhoodDTO, error) {
	input, err := input.validated()
	if err != nil {
		return nil, err
	}
	city, err := s.repo.CityByRef(ctx, cityRef)
	if err != nil {
		return nil, lookupError(err, "city")
	}
	n := &models.Neighborhood{CityID: city.ID, Name: input.Name, Slug: input.Slug}
	if err := s.repo.CreateNeighborhood(ctx, n); err != nil {
		return nil, createError(err, "neighborhood")
	}
	dto := toNeighborhoodDTO(*n)
	return &dto, nil
}

func (s *service) CreateCategory(ctx context.Context, input NodeInput) (*CategoryDTO, error) {
	input, err := input.validated()
	if err != nil {
		return nil, err
	}
	category := &models.Category{Name: input.Name, Slug: input.Slug, Icon: input.Icon, SortOrder: input.SortOrder}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, createError(err, "category")
	}
	dto := toCategoryDTO(*category)
	return &dto, nil
}

func (s *service) CreateSubcategory(ctx context.Context, categoryRef string, input NodeInput) (*SubcategoryDTO, error) {
	input, err := input.validated()
	if err != nil {
		return nil, err
	}
	category, err := s.repo.CategoryByRef(ctx, categoryRef)
	if err != nil {
		return nil, lookupError(err, "category")
	}
	sub := &models.Subcategory{CategoryID: category.ID, Name: input.Name, Slug: input.Slug, SortOrder: input.SortOrder}
	if err := s.repo.CreateSubcategory(ctx, sub); err != nil {
		return nil, createError(err, "subcategory")
	}
	dto := toSubcategoryDTO(*sub)
	return &dto, nil
}

// NodeInput is the admin payload for any taxonomy node. Icon and sort order
// only apply where the node carries them.
type NodeInput struct {
	Name      types.Localized `json:"name"`
	Slug      string          `json:"slug"`
	Icon      *string         `json:"icon,omitempty"`
	SortOrder int             `json:"sort_order"`
}

func (in NodeInput) validated() (NodeInput, error) {
	in.Name = in.Name.Trimmed()
	in.Slug = strings.TrimSpace(in.Slug)

	errs := pkgerrors.FieldErrors{}
	if in.Name.He == "" || in.Name.Ru == "" {
		errs.Add("name", "hebrew and russian names are required")
	}
	switch {
	case in.Slug == "":
		errs.Add("slug", "slug is required")
	case !slugPattern.MatchString(in.Slug):
		errs.Add("slug", "slug may only contain lowercase letters, digits and single hyphens")
	}
	if in.SortOrder < 0 {
		errs.Add("sort_order", "sort order must not be negative")
	}
	return in, errs.Err()
}

func lookupError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup "+entity)
}

func createError(err error, entity string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, entity+" slug already exists").
			WithDetails(map[string]string{"slug": "slug already exists"})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create "+entity)
}
