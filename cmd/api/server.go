package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"homematch/auth"
	"homematch/match"
	"homematch/profile"
	"homematch/property"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type formationService interface {
	RecordSwipe(ctx context.Context, params match.SwipeParams) (match.SwipeResult, error)
}

type queryService interface {
	ListMatches(ctx context.Context, userID string, role match.Role) ([]match.MatchView, error)
	ListHistory(ctx context.Context, userID string, role match.Role) ([]match.MatchView, error)
}

type lifecycleService interface {
	Dissolve(ctx context.Context, matchID, requestedBy string) (match.Match, error)
}

type propertyService interface {
	GetByID(ctx context.Context, id string) (property.Listing, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]property.Listing, error)
	Create(ctx context.Context, params property.CreateParams) (property.Listing, error)
}

type profileReader interface {
	GetPublic(ctx context.Context, userID string) (profile.Snapshot, error)
}

// Server wires HTTP handlers to the domain services.
type Server struct {
	authService      authService
	formationService formationService
	queryService     queryService
	lifecycleService lifecycleService
	propertyService  propertyService
	profileRepo      profileReader
}

// Routes builds the HTTP mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/swipes", s.requireAuth(s.handleSwipe))
	mux.HandleFunc("/api/matches", s.requireAuth(s.handleMatches))
	mux.HandleFunc("/api/matches/history", s.requireAuth(s.handleMatchHistory))
	mux.HandleFunc("/api/matches/", s.requireAuth(s.handleMatchDetail))
	mux.HandleFunc("/api/properties", s.requireAuth(s.handleProperties))
	mux.HandleFunc("/api/properties/", s.requireAuth(s.handlePropertyDetail))
	mux.HandleFunc("/api/profiles/", s.requireAuth(s.handleProfile))
	return mux
}

// requireAuth authenticates the bearer token and resolves the operating role.
// The X-Operating-Role header lets a session flip between tenant and landlord
// without re-logging; identity stays the same.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, role, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if override := r.Header.Get("X-Operating-Role"); override != "" {
			switched := auth.Role(override)
			if !auth.ValidRole(switched) {
				writeError(w, http.StatusBadRequest, "unknown operating role")
				return
			}
			role = switched
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

type registerResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeServerError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	})
}

type loginResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Role  string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "unknown role")
		default:
			writeServerError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		ID:    result.User.ID,
		Role:  string(result.Role),
	})
}

type swipeRequest struct {
	CounterpartyID string `json:"counterpartyId"`
	PropertyID     string `json:"propertyId"`
	Decision       string `json:"decision"`
}

type swipeResponse struct {
	Decision string         `json:"decision"`
	Matched  bool           `json:"matched"`
	Match    *matchResponse `json:"match,omitempty"`
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req swipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	result, err := s.formationService.RecordSwipe(r.Context(), match.SwipeParams{
		ActorID:        callerID(r),
		ActorRole:      callerRole(r),
		CounterpartyID: req.CounterpartyID,
		PropertyID:     req.PropertyID,
		Decision:       match.Decision(req.Decision),
	})
	if err != nil {
		switch {
		case errors.Is(err, match.ErrInvalidDirection), errors.Is(err, match.ErrSelfMatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeServerError(w, err)
		}
		return
	}

	resp := swipeResponse{
		Decision: string(result.Preference.Decision),
		Matched:  result.Match != nil,
	}
	if result.Match != nil {
		mr := bareMatchResponse(*result.Match)
		resp.Match = &mr
	}
	writeJSON(w, http.StatusOK, resp)
}

type counterpartyResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Available bool   `json:"available"`
}

type propertySnapshotResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	City        string `json:"city"`
	RentMonthly int64  `json:"rentMonthly"`
	Bedrooms    int    `json:"bedrooms"`
	Available   bool   `json:"available"`
}

type matchResponse struct {
	ID           string                    `json:"id"`
	Status       string                    `json:"status"`
	CreatedAt    string                    `json:"createdAt"`
	DissolvedAt  string                    `json:"dissolvedAt,omitempty"`
	Counterparty *counterpartyResponse     `json:"counterparty,omitempty"`
	Property     *propertySnapshotResponse `json:"property,omitempty"`
}

func bareMatchResponse(m match.Match) matchResponse {
	resp := matchResponse{
		ID:        m.ID,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.DissolvedAt != nil {
		resp.DissolvedAt = m.DissolvedAt.Format(time.RFC3339)
	}
	return resp
}

func viewResponse(v match.MatchView) matchResponse {
	resp := bareMatchResponse(v.Match)
	resp.Counterparty = &counterpartyResponse{
		ID:        v.Counterparty.UserID,
		FullName:  v.Counterparty.FullName,
		AvatarURL: v.Counterparty.AvatarURL,
		Bio:       v.Counterparty.Bio,
		Phone:     v.Counterparty.Phone,
		Available: v.Counterparty.Available,
	}
	resp.Property = &propertySnapshotResponse{
		ID:          v.Property.PropertyID,
		Title:       v.Property.Title,
		City:        v.Property.City,
		RentMonthly: v.Property.RentMonthly,
		Bedrooms:    v.Property.Bedrooms,
		Available:   v.Property.Available,
	}
	return resp
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeMatchList(w, r, false)
}

func (s *Server) handleMatchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeMatchList(w, r, true)
}

func (s *Server) writeMatchList(w http.ResponseWriter, r *http.Request, history bool) {
	userID := callerID(r)
	role := callerRole(r)

	var (
		views []match.MatchView
		err   error
	)
	if history {
		views, err = s.queryService.ListHistory(r.Context(), userID, role)
	} else {
		views, err = s.queryService.ListMatches(r.Context(), userID, role)
	}
	if err != nil {
		if errors.Is(err, match.ErrUnknownRole) {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		writeServerError(w, err)
		return
	}

	items := make([]matchResponse, 0, len(views))
	for _, v := range views {
		items = append(items, viewResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleMatchDetail(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	if matchID == "" || strings.Contains(matchID, "/") {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	m, err := s.lifecycleService.Dissolve(r.Context(), matchID, callerID(r))
	if err != nil {
		switch {
		case errors.Is(err, match.ErrMatchNotFound):
			writeError(w, http.StatusNotFound, "match not found")
		case errors.Is(err, match.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "not a participant")
		default:
			writeServerError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, bareMatchResponse(m))
}

type listingResponse struct {
	ID          string `json:"id"`
	LandlordID  string `json:"landlordId"`
	Title       string `json:"title"`
	City        string `json:"city"`
	RentMonthly int64  `json:"rentMonthly"`
	Bedrooms    int    `json:"bedrooms"`
	Furnished   bool   `json:"furnished"`
	CreatedAt   string `json:"createdAt"`
}

func toListingResponse(l property.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		LandlordID:  l.LandlordID,
		Title:       l.Title,
		City:        l.City,
		RentMonthly: l.RentMonthly,
		Bedrooms:    l.Bedrooms,
		Furnished:   l.Furnished,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

type createListingRequest struct {
	Title       string `json:"title"`
	City        string `json:"city"`
	RentMonthly int64  `json:"rentMonthly"`
	Bedrooms    int    `json:"bedrooms"`
	Furnished   bool   `json:"furnished"`
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		listings, err := s.propertyService.ListByLandlord(r.Context(), callerID(r))
		if err != nil {
			writeServerError(w, err)
			return
		}
		items := make([]listingResponse, 0, len(listings))
		for _, l := range listings {
			items = append(items, toListingResponse(l))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if callerRole(r) != match.RoleLandlord {
			writeError(w, http.StatusForbidden, "only landlords can publish listings")
			return
		}
		var req createListingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		listing, err := s.propertyService.Create(r.Context(), property.CreateParams{
			LandlordID:  callerID(r),
			Title:       req.Title,
			City:        req.City,
			RentMonthly: req.RentMonthly,
			Bedrooms:    req.Bedrooms,
			Furnished:   req.Furnished,
		})
		if err != nil {
			if errors.Is(err, property.ErrLandlordMissing) {
				writeError(w, http.StatusNotFound, "landlord not found")
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, toListingResponse(listing))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePropertyDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/properties/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	listing, err := s.propertyService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, property.ErrNotFound) {
			writeError(w, http.StatusNotFound, "property not found")
			return
		}
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

type profileResponse struct {
	ID        string  `json:"id"`
	FullName  string  `json:"fullName"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	Bio       string  `json:"bio,omitempty"`
	Rating    float64 `json:"rating"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	snap, err := s.profileRepo.GetPublic(r.Context(), id)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:        snap.UserID,
		FullName:  snap.FullName,
		AvatarURL: snap.AvatarURL,
		Bio:       snap.Bio,
		Rating:    snap.Rating,
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

func callerRole(r *http.Request) match.Role {
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return match.Role(role)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServerError(w http.ResponseWriter, err error) {
	log.Printf("api: internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
