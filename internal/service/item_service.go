package service

import (
	"context"
	"fmt"
	"time"

	"advocat/internal/collection"
	"advocat/internal/models"

	"github.com/rs/zerolog"
)

// CatalogAPI lists the public catalog of the remote API.
type CatalogAPI interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Services(ctx context.Context) ([]models.Service, error)
	Staff(ctx context.Context) ([]models.Staff, error)
	InvalidateCatalog(ctx context.Context)
}

// CatalogService keeps the public categories, services and staff. The lists
// are the same for every visitor and shared by the whole gateway.
type CatalogService struct {
	api        CatalogAPI
	logger     *zerolog.Logger
	categories *collection.List[models.Category]
	services   *collection.List[models.Service]
	staff      *collection.List[models.Staff]
}

// NewCatalogService loads each list on first use and again once it is older
// than maxAge.
func NewCatalogService(api CatalogAPI, maxAge time.Duration, logger *zerolog.Logger) *CatalogService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "catalog").Logger()
	}
	return &CatalogService{
		api:        api,
		logger:     &l,
		categories: collection.NewList("categories", api.Categories, maxAge, l),
		services:   collection.NewList("services", api.Services, maxAge, l),
		staff:      collection.NewList("staff", api.Staff, maxAge, l),
	}
}

// Categories loads the list on first use. A failed load yields what is known, possibly nothing.
func (s *CatalogService) Categories(ctx context.Context) []models.Category {
	_ = s.categories.Ensure(ctx)
	return s.categories.Items()
}

func (s *CatalogService) Services(ctx context.Context) []models.Service {
	_ = s.services.Ensure(ctx)
	return s.services.Items()
}

// ServicesByCategory returns the services of one category.
func (s *CatalogService) ServicesByCategory(ctx context.Context, categoryID int64) []models.Service {
	_ = s.services.Ensure(ctx)
	return s.services.Filter(func(svc models.Service) bool {
		return svc.CategoryID == categoryID
	})
}

func (s *CatalogService) Staff(ctx context.Context) []models.Staff {
	_ = s.staff.Ensure(ctx)
	return s.staff.Items()
}

// ActiveStaff is the staff offered in the booking wizard.
func (s *CatalogService) ActiveStaff(ctx context.Context) []models.Staff {
	_ = s.staff.Ensure(ctx)
	return s.staff.Filter(func(st models.Staff) bool { return st.IsActive })
}

func (s *CatalogService) ServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	for _, svc := range s.Services(ctx) {
		if svc.ID == id {
			return &svc, nil
		}
	}
	return nil, fmt.Errorf("service not found: %d", id)
}

func (s *CatalogService) Loading() bool {
	return s.categories.Loading() || s.services.Loading() || s.staff.Loading()
}

// Refresh drops the remote cache and reloads every list.
func (s *CatalogService) Refresh(ctx context.Context) error {
	s.api.InvalidateCatalog(ctx)

	var firstErr error
	for _, refresh := range []func(context.Context) error{s.categories.Refresh, s.services.Refresh, s.staff.Refresh} {
		if err := refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.logger.Warn().Err(firstErr).Msg("catalog refresh incomplete")
	}
	return firstErr
}
