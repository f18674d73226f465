package property

import (
	"context"
	"testing"
	"time"
)

type fakeCatalog struct {
	listing Listing
	err     error
	created *CreateParams
}

func (f *fakeCatalog) GetByID(_ context.Context, _ string) (Listing, error) {
	return f.listing, f.err
}

func (f *fakeCatalog) ListByLandlord(_ context.Context, _ string) ([]Listing, error) {
	return []Listing{f.listing}, f.err
}

func (f *fakeCatalog) Create(_ context.Context, params CreateParams) (Listing, error) {
	f.created = &params
	return f.listing, f.err
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params CreateParams
	}{
		{"missing landlord", CreateParams{Title: "Flat", City: "Porto", RentMonthly: 900}},
		{"blank title", CreateParams{LandlordID: "l1", Title: "   ", City: "Porto", RentMonthly: 900}},
		{"blank city", CreateParams{LandlordID: "l1", Title: "Flat", RentMonthly: 900}},
		{"zero rent", CreateParams{LandlordID: "l1", Title: "Flat", City: "Porto"}},
		{"negative rent", CreateParams{LandlordID: "l1", Title: "Flat", City: "Porto", RentMonthly: -50}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeCatalog{}
			svc := NewService(repo)
			if _, err := svc.Create(context.Background(), tc.params); err == nil {
				t.Fatal("expected validation error")
			}
			if repo.created != nil {
				t.Fatal("repository must not be reached on invalid input")
			}
		})
	}
}

func TestCreate_DefaultsBedrooms(t *testing.T) {
	repo := &fakeCatalog{listing: Listing{ID: "p1", CreatedAt: time.Now()}}
	svc := NewService(repo)

	listing, err := svc.Create(context.Background(), CreateParams{
		LandlordID:  "l1",
		Title:       "Flat",
		City:        "Porto",
		RentMonthly: 900,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if listing.ID != "p1" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if repo.created == nil || repo.created.Bedrooms != 1 {
		t.Fatalf("expected bedrooms to default to 1, got %+v", repo.created)
	}
}
