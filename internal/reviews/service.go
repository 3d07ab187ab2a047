package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/enums"
	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/outbox"
	"github.com/citydirectory/directory-backend/pkg/pagination"
	"github.com/citydirectory/directory-backend/pkg/visibility"
)

const (
	maxAuthorNameLength = 80
	maxCommentLength    = 2000
	minRating           = 1
	maxRating           = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// searchInvalidator drops cached search results once ratings move.
type searchInvalidator interface {
	BumpSearchGeneration(ctx context.Context) error
}

// Service defines review submission and listing.
type Service interface {
	Create(ctx context.Context, businessID uuid.UUID, in CreateInput) (*ReviewDTO, error)
	List(ctx context.Context, businessID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// CreateInput is a visitor's review.
type CreateInput struct {
	AuthorName string  `json:"author_name" validate:"required,max=80"`
	Rating     int     `json:"rating" validate:"required,min=1,max=5"`
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Invalidator searchInvalidator
	Logger      *logger.Logger
	IncludeTest bool
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	invalidator searchInvalidator
	logg        *logger.Logger
	includeTest bool
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		invalidator: params.Invalidator,
		logg:        params.Logger,
		includeTest: params.IncludeTest,
	}, nil
}

func (s *service) Create(ctx context.Context, businessID uuid.UUID, in CreateInput) (*ReviewDTO, error) {
	review, err := in.toModel(businessID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReviewable(ctx, businessID); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Data: outbox.ReviewCreatedEvent{
				ReviewID:   review.ID,
				BusinessID: review.BusinessID,
				Rating:     review.Rating,
				CreatedAt:  review.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit review event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearch(ctx, businessID)
	dto := toDTO(*review)
	return &dto, nil
}

func (s *service) List(ctx context.Context, businessID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if err := s.ensureReviewable(ctx, businessID); err != nil {
		return nil, err
	}

	query := listParams{
		BusinessID: businessID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{At: r.CreatedAt, ID: r.ID}
	})

	items := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDTO(row))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

// ensureReviewable hides reviews of listings the public cannot see.
func (s *service) ensureReviewable(ctx context.Context, businessID uuid.UUID) error {
	business, err := s.repo.FindBusiness(ctx, businessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	return visibility.EnsureBusinessVisible(business, s.includeTest)
}

func (s *service) invalidateSearch(ctx context.Context, businessID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.BumpSearchGeneration(ctx); err != nil {
		s.logg.Error(s.logg.WithBusinessID(ctx, businessID.String()), "search cache invalidation failed", err)
	}
}

func (in CreateInput) toModel(businessID uuid.UUID) (*models.Review, error) {
	fields := pkgerrors.FieldErrors{}

	author := strings.TrimSpace(in.AuthorName)
	switch {
	case author == "":
		fields.Add("author_name", "author name is required")
	case utf8.RuneCountInString(author) > maxAuthorNameLength:
		fields.Add("author_name", fmt.Sprintf("author name must be at most %d characters", maxAuthorNameLength))
	}

	if in.Rating < minRating || in.Rating > maxRating {
		fields.Add("rating", fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}

	var comment *string
	if in.Comment != nil {
		trimmed := strings.TrimSpace(*in.Comment)
		if utf8.RuneCountInString(trimmed) > maxCommentLength {
			fields.Add("comment", fmt.Sprintf("comment must be at most %d characters", maxCommentLength))
		}
		if trimmed != "" {
			comment = &trimmed
		}
	}

	if err := fields.Err(); err != nil {
		return nil, err
	}
	return &models.Review{
		BusinessID: businessID,
		AuthorName: author,
		Rating:     in.Rating,
		Comment:    comment,
	}, nil
}
