package match

import "time"

// Role is the side of the marketplace a user is operating under for a given
// request. It is supplied by the caller on every call and never persisted on
// the user; the same account may swipe as tenant and as landlord.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleLandlord
}

// Other returns the opposite side of the marketplace.
func (r Role) Other() Role {
	if r == RoleTenant {
		return RoleLandlord
	}
	return RoleTenant
}

// Decision is the outcome of a single swipe.
type Decision string

const (
	DecisionLike Decision = "like"
	DecisionPass Decision = "pass"
)

func (d Decision) Valid() bool {
	return d == DecisionLike || d == DecisionPass
}

// Status tracks the lifecycle of a match. Formation is a one-time event and
// dissolution is terminal; there is no reactivation.
type Status string

const (
	StatusActive    Status = "active"
	StatusDissolved Status = "dissolved"
)

// Preference is the current decision of one actor toward a (counterparty,
// property) pair. Re-swipes overwrite this row; swipe_events keeps history.
type Preference struct {
	ID             string
	ActorID        string
	ActorRole      Role
	CounterpartyID string
	PropertyID     string
	Decision       Decision
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Match is the durable record of mutual interest for one triangle.
type Match struct {
	ID          string
	TenantID    string
	LandlordID  string
	PropertyID  string
	Status      Status
	CreatedAt   time.Time
	DissolvedAt *time.Time
}

// Triangle is the normalized (tenant, landlord, property) key identifying a
// potential match context regardless of which side swiped.
type Triangle struct {
	TenantID   string
	LandlordID string
	PropertyID string
}

// SwipeParams enumerates one swipe as submitted by the client.
type SwipeParams struct {
	ActorID        string
	ActorRole      Role
	CounterpartyID string
	PropertyID     string
	Decision       Decision
}

// Triangle maps the directional swipe onto the canonical triangle key.
func (p SwipeParams) Triangle() Triangle {
	if p.ActorRole == RoleLandlord {
		return Triangle{
			TenantID:   p.CounterpartyID,
			LandlordID: p.ActorID,
			PropertyID: p.PropertyID,
		}
	}
	return Triangle{
		TenantID:   p.ActorID,
		LandlordID: p.CounterpartyID,
		PropertyID: p.PropertyID,
	}
}

// SwipeResult reports what a swipe did: the stored preference and, when the
// swipe completed a mutual like, the match. Formed is false when the match
// already existed (including when a concurrent swipe from the other side won
// the creation race).
type SwipeResult struct {
	Preference Preference
	Match      *Match
	Formed     bool
}

// CounterpartySnapshot carries the other participant's public profile fields
// at read time. Available is false when the profile row has disappeared; the
// match is still returned so the caller can act on it.
type CounterpartySnapshot struct {
	UserID    string
	FullName  string
	AvatarURL string
	Bio       string
	Phone     string
	Available bool
}

// PropertySnapshot carries the listing fields shown next to a match.
type PropertySnapshot struct {
	PropertyID  string
	Title       string
	City        string
	RentMonthly int64
	Bedrooms    int
	Available   bool
}

// MatchView is the read-time projection of a match shaped for one side of
// the triangle. It is never persisted.
type MatchView struct {
	Match        Match
	ViewerRole   Role
	Counterparty CounterpartySnapshot
	Property     PropertySnapshot
}
