package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homematch/auth"
	"homematch/match"
	"homematch/profile"
	"homematch/property"
)

type stubAuthService struct {
	user         *auth.User
	registerErr  error
	loginResult  auth.LoginResult
	loginErr     error
	verifyUserID string
	verifyRole   auth.Role
	verifyErr    error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (*auth.User, error) {
	return s.user, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) VerifyToken(_ string) (string, auth.Role, error) {
	return s.verifyUserID, s.verifyRole, s.verifyErr
}

type stubFormationService struct {
	result match.SwipeResult
	err    error
	params match.SwipeParams
}

func (s *stubFormationService) RecordSwipe(_ context.Context, params match.SwipeParams) (match.SwipeResult, error) {
	s.params = params
	return s.result, s.err
}

type stubQueryService struct {
	active  []match.MatchView
	history []match.MatchView
	err     error
}

func (s *stubQueryService) ListMatches(_ context.Context, _ string, _ match.Role) ([]match.MatchView, error) {
	return s.active, s.err
}

func (s *stubQueryService) ListHistory(_ context.Context, _ string, _ match.Role) ([]match.MatchView, error) {
	return s.history, s.err
}

type stubLifecycleService struct {
	match match.Match
	err   error
}

func (s *stubLifecycleService) Dissolve(_ context.Context, _ string, _ string) (match.Match, error) {
	return s.match, s.err
}

type stubPropertyService struct {
	listing  property.Listing
	listings []property.Listing
	err      error
}

func (s *stubPropertyService) GetByID(_ context.Context, _ string) (property.Listing, error) {
	return s.listing, s.err
}

func (s *stubPropertyService) ListByLandlord(_ context.Context, _ string) ([]property.Listing, error) {
	return s.listings, s.err
}

func (s *stubPropertyService) Create(_ context.Context, _ property.CreateParams) (property.Listing, error) {
	return s.listing, s.err
}

type stubProfileRepo struct {
	snapshot profile.Snapshot
	err      error
}

func (s *stubProfileRepo) GetPublic(_ context.Context, _ string) (profile.Snapshot, error) {
	return s.snapshot, s.err
}

func authedRequest(method, target, body, userID string, role auth.Role) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyRole, role)
	return req.WithContext(ctx)
}

func TestHandleSwipe_MutualLikeFormsMatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	server := &Server{
		formationService: &stubFormationService{
			result: match.SwipeResult{
				Preference: match.Preference{Decision: match.DecisionLike},
				Match:      &match.Match{ID: "m1", Status: match.StatusActive, CreatedAt: now},
				Formed:     true,
			},
		},
	}

	body := `{"counterpartyId":"landlord-1","propertyId":"prop-1","decision":"like"}`
	req := authedRequest(http.MethodPost, "/api/swipes", body, "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleSwipe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp swipeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Matched || resp.Match == nil || resp.Match.ID != "m1" {
		t.Fatalf("unexpected swipe payload: %+v", resp)
	}
	if resp.Match.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.Match.CreatedAt)
	}
}

func TestHandleSwipe_PassReturnsNoMatch(t *testing.T) {
	server := &Server{
		formationService: &stubFormationService{
			result: match.SwipeResult{
				Preference: match.Preference{Decision: match.DecisionPass},
			},
		},
	}

	body := `{"counterpartyId":"landlord-1","propertyId":"prop-1","decision":"pass"}`
	req := authedRequest(http.MethodPost, "/api/swipes", body, "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleSwipe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp swipeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Matched || resp.Match != nil {
		t.Fatalf("pass must not report a match: %+v", resp)
	}
}

func TestHandleSwipe_InvalidDirection(t *testing.T) {
	server := &Server{
		formationService: &stubFormationService{err: match.ErrInvalidDirection},
	}

	body := `{"counterpartyId":"tenant-2","propertyId":"prop-1","decision":"like"}`
	req := authedRequest(http.MethodPost, "/api/swipes", body, "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleSwipe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSwipe_WrongMethod(t *testing.T) {
	server := &Server{formationService: &stubFormationService{}}

	req := authedRequest(http.MethodGet, "/api/swipes", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleSwipe(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleMatches_Success(t *testing.T) {
	now := time.Now().UTC()
	server := &Server{
		queryService: &stubQueryService{
			active: []match.MatchView{
				{
					Match:      match.Match{ID: "m1", Status: match.StatusActive, CreatedAt: now},
					ViewerRole: match.RoleTenant,
					Counterparty: match.CounterpartySnapshot{
						UserID:    "landlord-1",
						FullName:  "Dana Vale",
						Available: true,
					},
					Property: match.PropertySnapshot{
						PropertyID:  "prop-1",
						Title:       "Sunny loft",
						City:        "Porto",
						RentMonthly: 1200,
						Bedrooms:    2,
						Available:   true,
					},
				},
			},
		},
	}

	req := authedRequest(http.MethodGet, "/api/matches", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Items []matchResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(payload.Items))
	}
	item := payload.Items[0]
	if item.ID != "m1" || item.Counterparty == nil || item.Counterparty.FullName != "Dana Vale" {
		t.Fatalf("unexpected payload: %+v", item)
	}
	if item.Property == nil || item.Property.Title != "Sunny loft" || !item.Property.Available {
		t.Fatalf("unexpected property snapshot: %+v", item.Property)
	}
}

func TestHandleMatches_UnknownRole(t *testing.T) {
	server := &Server{
		queryService: &stubQueryService{err: match.ErrUnknownRole},
	}

	req := authedRequest(http.MethodGet, "/api/matches", "", "tenant-1", auth.Role("admin"))
	rec := httptest.NewRecorder()

	server.handleMatches(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleMatchHistory_IncludesDissolved(t *testing.T) {
	now := time.Now().UTC()
	dissolved := now.Add(time.Hour)
	server := &Server{
		queryService: &stubQueryService{
			history: []match.MatchView{
				{Match: match.Match{ID: "m1", Status: match.StatusDissolved, CreatedAt: now, DissolvedAt: &dissolved}},
			},
		},
	}

	req := authedRequest(http.MethodGet, "/api/matches/history", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatchHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Items []matchResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Status != string(match.StatusDissolved) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Items[0].DissolvedAt != dissolved.Format(time.RFC3339) {
		t.Fatalf("expected dissolvedAt %s, got %s", dissolved.Format(time.RFC3339), payload.Items[0].DissolvedAt)
	}
}

func TestHandleMatchDetail_Dissolve(t *testing.T) {
	now := time.Now().UTC()
	server := &Server{
		lifecycleService: &stubLifecycleService{
			match: match.Match{ID: "m1", Status: match.StatusDissolved, CreatedAt: now, DissolvedAt: &now},
		},
	}

	req := authedRequest(http.MethodDelete, "/api/matches/m1", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatchDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "m1" || resp.Status != string(match.StatusDissolved) || resp.DissolvedAt == "" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleMatchDetail_Forbidden(t *testing.T) {
	server := &Server{
		lifecycleService: &stubLifecycleService{err: match.ErrUnauthorized},
	}

	req := authedRequest(http.MethodDelete, "/api/matches/m1", "", "outsider", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatchDetail(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleMatchDetail_NotFound(t *testing.T) {
	server := &Server{
		lifecycleService: &stubLifecycleService{err: match.ErrMatchNotFound},
	}

	req := authedRequest(http.MethodDelete, "/api/matches/missing", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatchDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleMatchDetail_InvalidPath(t *testing.T) {
	server := &Server{lifecycleService: &stubLifecycleService{}}

	req := authedRequest(http.MethodDelete, "/api/matches/", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleMatchDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleProperties_CreateForbidsTenantRole(t *testing.T) {
	server := &Server{propertyService: &stubPropertyService{}}

	body := `{"title":"Sunny loft","city":"Porto","rentMonthly":1200}`
	req := authedRequest(http.MethodPost, "/api/properties", body, "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleProperties(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleProperties_CreateSuccess(t *testing.T) {
	now := time.Now().UTC()
	server := &Server{
		propertyService: &stubPropertyService{
			listing: property.Listing{
				ID:          "prop-1",
				LandlordID:  "landlord-1",
				Title:       "Sunny loft",
				City:        "Porto",
				RentMonthly: 1200,
				Bedrooms:    2,
				CreatedAt:   now,
			},
		},
	}

	body := `{"title":"Sunny loft","city":"Porto","rentMonthly":1200,"bedrooms":2}`
	req := authedRequest(http.MethodPost, "/api/properties", body, "landlord-1", auth.RoleLandlord)
	rec := httptest.NewRecorder()

	server.handleProperties(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp listingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "prop-1" || resp.LandlordID != "landlord-1" || resp.RentMonthly != 1200 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleProperties_CreateValidationError(t *testing.T) {
	server := &Server{
		propertyService: &stubPropertyService{err: errors.New("property: title is mandatory")},
	}

	body := `{"city":"Porto","rentMonthly":1200}`
	req := authedRequest(http.MethodPost, "/api/properties", body, "landlord-1", auth.RoleLandlord)
	rec := httptest.NewRecorder()

	server.handleProperties(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePropertyDetail_NotFound(t *testing.T) {
	server := &Server{
		propertyService: &stubPropertyService{err: property.ErrNotFound},
	}

	req := authedRequest(http.MethodGet, "/api/properties/missing", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handlePropertyDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleProfile_Success(t *testing.T) {
	server := &Server{
		profileRepo: &stubProfileRepo{
			snapshot: profile.Snapshot{
				UserID:   "landlord-1",
				FullName: "Dana Vale",
				Bio:      "Two apartments in Porto",
				Rating:   4.6,
			},
		},
	}

	req := authedRequest(http.MethodGet, "/api/profiles/landlord-1", "", "tenant-1", auth.RoleTenant)
	rec := httptest.NewRecorder()

	server.handleProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "landlord-1" || resp.FullName != "Dana Vale" || resp.Rating != 4.6 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{registerErr: auth.ErrDuplicateEmail},
	}

	body := strings.NewReader(`{"email":"a@b.c","password":"longenough","full_name":"A"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{loginErr: auth.ErrInvalidCredentials},
	}

	body := strings.NewReader(`{"email":"a@b.c","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleLogin_ReturnsRole(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{
			loginResult: auth.LoginResult{
				Token: "tok",
				User:  auth.User{ID: "u1", Email: "a@b.c"},
				Role:  auth.RoleLandlord,
			},
		},
	}

	body := strings.NewReader(`{"email":"a@b.c","password":"longenough","role":"landlord"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok" || resp.Role != "landlord" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	server := &Server{authService: &stubAuthService{}}

	handler := server.requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_RoleOverride(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{verifyUserID: "u1", verifyRole: auth.RoleTenant},
	}

	var seenRole auth.Role
	handler := server.requireAuth(func(_ http.ResponseWriter, r *http.Request) {
		seenRole, _ = r.Context().Value(ctxKeyRole).(auth.Role)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-Operating-Role", "landlord")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seenRole != auth.RoleLandlord {
		t.Fatalf("expected landlord role after override, got %q", seenRole)
	}
}

func TestRequireAuth_RejectsUnknownOverride(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{verifyUserID: "u1", verifyRole: auth.RoleTenant},
	}

	handler := server.requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with a bogus role override")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-Operating-Role", "admin")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
