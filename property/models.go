package property

import "time"

// Listing captures the catalog fields the matching engine and the UI consume.
type Listing struct {
	ID            string
	LandlordID    string
	Title         string
	City          string
	RentMonthly   int64
	Bedrooms      int
	Furnished     bool
	AvailableFrom *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateParams enumerates the required fields to publish a listing.
type CreateParams struct {
	LandlordID    string
	Title         string
	City          string
	RentMonthly   int64
	Bedrooms      int
	Furnished     bool
	AvailableFrom *time.Time
}
