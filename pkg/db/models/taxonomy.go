package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/types"
)

type City struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      types.Localized `gorm:"embedded;embeddedPrefix:name_"`
	Slug      string          `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (City) TableName() string { return "cities" }

func (c *City) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Neighborhood belongs to exactly one city.
type Neighborhood struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CityID    uuid.UUID       `gorm:"column:city_id;type:uuid;not null"`
	Name      types.Localized `gorm:"embedded;embeddedPrefix:name_"`
	Slug      string          `gorm:"column:slug;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Neighborhood) TableName() string { return "neighborhoods" }

func (n *Neighborhood) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

type Category struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          types.Localized `gorm:"embedded;embeddedPrefix:name_"`
	Slug          string          `gorm:"column:slug;not null;uniqueIndex"`
	Icon          *string         `gorm:"column:icon"`
	SortOrder     int             `gorm:"column:sort_order;not null;default:0"`
	Subcategories []Subcategory   `gorm:"foreignKey:CategoryID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Subcategory belongs to exactly one category.
type Subcategory struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	Name       types.Localized `gorm:"embedded;embeddedPrefix:name_"`
	Slug       string          `gorm:"column:slug;not null"`
	SortOrder  int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Subcategory) TableName() string { return "subcategories" }

func (s *Subcategory) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
