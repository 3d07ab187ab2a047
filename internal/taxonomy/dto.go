package taxonomy

import (
	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/types"
)

type CityDTO struct {
	ID   uuid.UUID       `json:"id"`
	Name types.Localized `json:"name"`
	Slug string          `json:"slug"`
}

type NeighborhoodDTO struct {
	ID     uuid.UUID       `json:"id"`
	CityID uuid.UUID       `json:"city_id"`
	Name   types.Localized `json:"name"`
	Slug   string          `json:"slug"`
}

type CategoryDTO struct {
	ID            uuid.UUID        `json:"id"`
	Name          types.Localized  `json:"name"`
	Slug          string           `json:"slug"`
	Icon          *string          `json:"icon,omitempty"`
	SortOrder     int              `json:"sort_order"`
	Subcategories []SubcategoryDTO `json:"subcategories"`
}

type SubcategoryDTO struct {
	ID         uuid.UUID       `json:"id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Name       types.Localized `json:"name"`
	Slug       string          `json:"slug"`
	SortOrder  int             `json:"sort_order"`
}

func toCityDTO(m models.City) CityDTO {
	return CityDTO{ID: m.ID, Name: m.Name, Slug: m.Slug}
}

func toNeighborhoodDTO(m models.Neighborhood) NeighborhoodDTO {
	return NeighborhoodDTO{ID: m.ID, CityID: m.CityID, Name: m.Name, Slug: m.Slug}
}

func toCategoryDTO(m models.Category) CategoryDTO {
	subs := make([]SubcategoryDTO, len(m.Subcategories))
	for i, sub := range m.Subcategories {
		subs[i] = toSubcategoryDTO(sub)
	}
	return CategoryDTO{
		ID:            m.ID,
		Name:          m.Name,
		Slug:          m.Slug,
		Icon:          m.Icon,
		SortOrder:     m.SortOrder,
		Subcategories: subs,
	}
}

func toSubcategoryDTO(m models.Subcategory) SubcategoryDTO {
	return SubcategoryDTO{ID: m.ID, CategoryID: m.CategoryID, Name: m.Name, Slug: m.Slug, SortOrder: m.SortOrder}
}
