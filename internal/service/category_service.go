package service

import (
	"context"
	"strings"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"
	"posterminal/internal/search"
	"posterminal/internal/similarity"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CategoryService interface {
	// Check compares name with every existing category except excludeID.
	Check(ctx context.Context, name string, excludeID uuid.UUID) (similarity.Conflict, error)
	// Lookup is Check behind the debounced tracker for as-you-type warnings.
	// A superseded call returns search.ErrStale.
	Lookup(ctx context.Context, name string, excludeID uuid.UUID) (similarity.Conflict, error)
	Create(ctx context.Context, req dto.CategoryRequest) (*model.Category, error)
	Update(ctx context.Context, id uuid.UUID, req dto.CategoryRequest) (*model.Category, error)
}

type categoryService struct {
	store     repository.CategoryStore
	threshold float64
	tracker   *search.Tracker
}

func NewCategoryService(store repository.CategoryStore, threshold float64, debounce time.Duration) CategoryService {
	if threshold <= 0 || threshold > 1 {
		threshold = similarity.DefaultThreshold
	}
	return &categoryService{store: store, threshold: threshold, tracker: search.NewTracker(debounce)}
}

func (s *categoryService) Check(ctx context.Context, name string, excludeID uuid.UUID) (similarity.Conflict, error) {
	if strings.TrimSpace(name) == "" {
		return similarity.Conflict{}, nil
	}
	existing, err := s.store.SearchCategories(ctx, "")
	if err != nil {
		return similarity.Conflict{}, err
	}
	return similarity.FindConflictWithThreshold(name, existing, excludeID, s.threshold), nil
}

func (s *categoryService) Lookup(ctx context.Context, name string, excludeID uuid.UUID) (similarity.Conflict, error) {
	return search.Run(ctx, s.tracker, func(ctx context.Context) (similarity.Conflict, error) {
		return s.Check(ctx, name, excludeID)
	})
}

func (s *categoryService) Create(ctx context.Context, req dto.CategoryRequest) (*model.Category, error) {
	name, err := s.guard(ctx, req, uuid.Nil)
	if err != nil {
		return nil, err
	}
	cat, err := s.store.CreateCategory(ctx, name, req.Description)
	if err != nil {
		return nil, err
	}
	log.Info().Str("category_id", cat.ID.String()).Str("name", cat.Name).Msg("category created")
	return cat, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, req dto.CategoryRequest) (*model.Category, error) {
	if id == uuid.Nil {
		return nil, apierror.Invalid("id", "required")
	}
	name, err := s.guard(ctx, req, id)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateCategory(ctx, id, name, req.Description)
}

// guard validates req and blocks exact duplicates. A similar name is returned
// as a SimilarNameError unless the caller already acknowledged it.
func (s *categoryService) guard(ctx context.Context, req dto.CategoryRequest, excludeID uuid.UUID) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return "", err
	}
	c, err := s.Check(ctx, req.Name, excludeID)
	if err != nil {
		return "", err
	}
	switch c.Type {
	case similarity.ConflictExact:
		return "", &apierror.ValidationError{
			Detail: "a category named " + c.Match.Name + " already exists",
			Fields: map[string]string{"Name": "duplicate"},
		}
	case similarity.ConflictSimilar:
		if !req.AcknowledgeSimilar {
			return "", &apierror.SimilarNameError{
				Name:       req.Name,
				MatchID:    c.Match.ID.String(),
				MatchName:  c.Match.Name,
				Similarity: c.Similarity,
			}
		}
	}
	return req.Name, nil
}
