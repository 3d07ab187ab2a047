// Package dbtest opens throwaway SQLite databases carrying the directory schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	"github.com/citydirectory/directory-backend/pkg/types"
)

// schema mirrors pkg/migrate/migrations with SQLite column types.
var schema = []string{
	`CREATE TABLE cities (
	id TEXT PRIMARY KEY,
	name_he TEXT NOT NULL DEFAULT '',
	name_ru TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL UNIQUE,
	created_at DATETIME
)`,
	`CREATE TABLE neighborhoods (
	id TEXT PRIMARY KEY,
	city_id TEXT NOT NULL,
	name_he TEXT NOT NULL DEFAULT '',
	name_ru TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL,
	created_at DATETIME,
	UNIQUE (city_id, slug)
)`,
	`CREATE TABLE categories (
	id TEXT PRIMARY KEY,
	name_he TEXT NOT NULL DEFAULT '',
	name_ru TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL UNIQUE,
	icon TEXT,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME
)`,
	`CREATE TABLE subcategories (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL,
	name_he TEXT NOT NULL DEFAULT '',
	name_ru TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	UNIQUE (category_id, slug)
)`,
	`CREATE TABLE businesses (
	id TEXT PRIMARY KEY,
	name_he TEXT NOT NULL DEFAULT '',
	name_ru TEXT NOT NULL DEFAULT '',
	description_he TEXT NOT NULL DEFAULT '',
	description_ru TEXT NOT NULL DEFAULT '',
	address_he TEXT NOT NULL DEFAULT '',
	address_ru TEXT NOT NULL DEFAULT '',
	opening_hours_he TEXT NOT NULL DEFAULT '',
	opening_hours_ru TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL,
	subcategory_id TEXT,
	city_id TEXT NOT NULL,
	neighborhood_id TEXT,
	serves_all_city BOOLEAN NOT NULL DEFAULT 0,
	phone TEXT,
	whatsapp_number TEXT,
	website TEXT,
	email TEXT,
	social TEXT,
	tags TEXT,
	is_visible BOOLEAN NOT NULL DEFAULT 0,
	is_verified BOOLEAN NOT NULL DEFAULT 0,
	is_pinned BOOLEAN NOT NULL DEFAULT 0,
	pinned_order INTEGER,
	is_test BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	rejection_reason TEXT,
	reviewed_at DATETIME,
	reviewed_by TEXT,
	owner_id TEXT,
	created_at DATETIME,
	updated_at DATETIME
)`,
	`CREATE TABLE pending_edits (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL UNIQUE,
	submitted_by TEXT NOT NULL,
	changes TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	rejection_reason TEXT,
	reviewed_at DATETIME,
	reviewed_by TEXT,
	created_at DATETIME,
	updated_at DATETIME
)`,
	`CREATE TABLE reviews (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	author_name TEXT NOT NULL,
	rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment TEXT,
	created_at DATETIME
)`,
	`CREATE TABLE outbox_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME,
	published_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
)`,
}

// Open returns a fresh in-memory database with every directory table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:directory_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Taxonomy is a minimal city/category tree to hang listings on.
type Taxonomy struct {
	City          models.City
	Neighborhoods map[string]models.Neighborhood
	Category      models.Category
	Subcategories map[string]models.Subcategory
}

// MustSeedTaxonomy creates one city and one category with the given child slugs.
func MustSeedTaxonomy(t testing.TB, conn *gorm.DB, citySlug string, neighborhoods []string, categorySlug string, subcategories []string) Taxonomy {
	t.Helper()
	out := Taxonomy{
		City:          models.City{Slug: citySlug, Name: types.Localized{He: citySlug, Ru: citySlug}},
		Category:      models.Category{Slug: categorySlug, Name: types.Localized{He: categorySlug, Ru: categorySlug}},
		Neighborhoods: map[string]models.Neighborhood{},
		Subcategories: map[string]models.Subcategory{},
	}
	mustCreate(t, conn, &out.City)
	mustCreate(t, conn, &out.Category)
	for _, slug := range neighborhoods {
		n := models.Neighborhood{CityID: out.City.ID, Slug: slug, Name: types.Localized{He: slug}}
		mustCreate(t, conn, &n)
		out.Neighborhoods[slug] = n
	}
	for i, slug := range subcategories {
		s := models.Subcategory{CategoryID: out.Category.ID, Slug: slug, SortOrder: i, Name: types.Localized{He: slug}}
		mustCreate(t, conn, &s)
		out.Subcategories[slug] = s
	}
	return out
}

// NewBusiness returns an approved, visible listing that passes submission
// validation. Callers adjust it before inserting.
func NewBusiness(categoryID, cityID uuid.UUID) *models.Business {
	phone := "+972-9-000-0000"
	return &models.Business{
		Name:          types.Localized{He: "עסק", Ru: "Бизнес"},
		CategoryID:    categoryID,
		CityID:        cityID,
		ServesAllCity: true,
		Phone:         &phone,
		Tags:          pq.StringArray{},
		IsVisible:     true,
		Status:        enums.BusinessStatusApproved,
	}
}

// MustCreateBusiness inserts b after applying the optional mutators.
func MustCreateBusiness(t testing.TB, conn *gorm.DB, b *models.Business, mutators ...func(*models.Business)) *models.Business {
	t.Helper()
	for _, mutate := range mutators {
		mutate(b)
	}
	mustCreate(t, conn, b)
	return b
}

// MustCreateReview inserts a review with the given rating.
func MustCreateReview(t testing.TB, conn *gorm.DB, businessID uuid.UUID, rating int) *models.Review {
	t.Helper()
	review := &models.Review{BusinessID: businessID, AuthorName: "tester", Rating: rating}
	mustCreate(t, conn, review)
	return review
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}
