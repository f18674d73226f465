package property

import (
	"context"
	"fmt"
	"strings"
)

// CatalogReader abstracts repository operations for the service.
type CatalogReader interface {
	GetByID(ctx context.Context, id string) (Listing, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]Listing, error)
	Create(ctx context.Context, params CreateParams) (Listing, error)
}

// Service exposes business-level catalog operations.
type Service struct {
	repo CatalogReader
}

func NewService(repo CatalogReader) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id string) (Listing, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByLandlord(ctx context.Context, landlordID string) ([]Listing, error) {
	return s.repo.ListByLandlord(ctx, landlordID)
}

// Create validates and publishes a new listing.
func (s *Service) Create(ctx context.Context, params CreateParams) (Listing, error) {
	if params.LandlordID == "" {
		return Listing{}, fmt.Errorf("property: missing landlord id")
	}
	if strings.TrimSpace(params.Title) == "" {
		return Listing{}, fmt.Errorf("property: title required")
	}
	if strings.TrimSpace(params.City) == "" {
		return Listing{}, fmt.Errorf("property: city required")
	}
	if params.RentMonthly <= 0 {
		return Listing{}, fmt.Errorf("property: invalid monthly rent")
	}
	if params.Bedrooms <= 0 {
		params.Bedrooms = 1
	}
	return s.repo.Create(ctx, params)
}
