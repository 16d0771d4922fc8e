// Package auth logs users in through the marketplace and manages the
// dashboard sessions that front their backend tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dashboard/backend"
	"dashboard/locations"
	"dashboard/model"
	"dashboard/poller"
	"dashboard/state"
	"dashboard/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgAllFields        = "All fields are required"
	msgBadCredentials   = "Incorrect phone number or password"
	msgLoginFailed      = "Login failed check your internet connection"
	msgNoRestaurant     = "No restaurant assigned to this manager."
	msgRestaurantFailed = "Failed to load restaurants."
	msgOrdersFailed     = "Failed to load orders."
	msgSessionExpired   = "Session expired. Please log in again."

	backendInvalidCredentials = "Invalid credentials"
)

// SessionStore is the persistence the service needs; the database
// repository implements it.
type SessionStore interface {
	Save(ctx context.Context, s *model.Session, token string) error
	Load(ctx context.Context, id string) (*model.Session, string, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type Deps struct {
	Client   *backend.Client
	Tokens   *utils.TokenManager
	Sessions SessionStore
	States   *state.Registry
	Pollers  *poller.Manager
	Trackers *locations.Registry
	Logger   *zap.Logger
}

type Service struct {
	client   *backend.Client
	tokens   *utils.TokenManager
	sessions SessionStore
	states   *state.Registry
	pollers  *poller.Manager
	trackers *locations.Registry
	log      *zap.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		client:   d.Client,
		tokens:   d.Tokens,
		sessions: d.Sessions,
		states:   d.States,
		pollers:  d.Pollers,
		trackers: d.Trackers,
		log:      d.Logger.Named("auth"),
		now:      time.Now,
	}
}

// Session is a resolved dashboard session for one request.
type Session struct {
	ID     string
	Role   model.Role
	Store  *state.Store
	API    *backend.API
	Record *model.Session
}

type Result struct {
	SessionID  string            `json:"-"`
	Tokens     *utils.TokenPair  `json:"tokens"`
	User       model.User        `json:"user"`
	Restaurant *model.Restaurant `json:"restaurant,omitempty"`
}

func (s *Service) Login(ctx context.Context, phone, password string) (*Result, error) {
	phone = model.SanitizePhone(phone)
	if phone == "" || password == "" {
		return nil, utils.NewHTTPError(http.StatusBadRequest, msgAllFields, nil)
	}

	res, err := s.client.Public().Login(ctx, phone, password)
	if err != nil {
		return nil, loginError(err)
	}
	user := res.User
	api := s.client.WithToken(res.Token)

	var restaurant *model.Restaurant
	if user.Role == model.RoleManager {
		restaurant, err = api.ManagerRestaurant(ctx)
		if err != nil {
			return nil, upstreamError(err, msgRestaurantFailed)
		}
		if restaurant == nil {
			return nil, utils.NewHTTPError(http.StatusForbidden, msgNoRestaurant, nil)
		}
	}

	id := uuid.NewString()
	rec := &model.Session{
		ID:        id,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}
	if restaurant != nil {
		rec.RestaurantID = restaurant.ID
	}
	if err := s.sessions.Save(ctx, rec, res.Token); err != nil {
		return nil, utils.NewHTTPError(http.StatusInternalServerError, "Failed to create session", err)
	}

	store := s.states.Create(id)
	store.SetUser(&user)
	store.SetRestaurant(restaurant)

	if user.Role == model.RoleManager {
		p := s.pollers.Start(id, store, api)
		if err := p.FetchOrders(ctx, poller.TriggerLogin); err != nil {
			s.discard(ctx, id)
			return nil, upstreamError(err, msgOrdersFailed)
		}
	}
	if user.Role == model.RoleAdmin && s.trackers != nil {
		s.trackers.Start(id, res.Token)
	}

	pair, err := s.tokens.GenerateTokens(id, user.Role)
	if err != nil {
		s.discard(ctx, id)
		return nil, utils.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens", err)
	}
	if err := s.states.FlushSession(ctx, id); err != nil {
		s.log.Warn("saving initial state failed", zap.String("session_id", id), zap.Error(err))
	}

	s.log.Info("user logged in",
		zap.String("session_id", id),
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return &Result{SessionID: id, Tokens: pair, User: user, Restaurant: restaurant}, nil
}

func loginError(err error) error {
	msg := backend.MessageOf(err)
	if msg == backendInvalidCredentials {
		return utils.NewHTTPError(http.StatusUnauthorized, msgBadCredentials, err)
	}
	return upstreamError(err, msgLoginFailed)
}

// upstreamError keeps the backend's status and message when it sent one.
func upstreamError(err error, fallback string) error {
	var httpErr *utils.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	status := backend.StatusOf(err)
	if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	if errors.Is(err, backend.ErrUnavailable) {
		status = http.StatusServiceUnavailable
	}
	msg := fallback
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return utils.NewHTTPError(status, msg, err)
}

// Resolve loads a session for a request, restarting its background work if
// this process has not been running it.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*Session, error) {
	rec, token, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, state.ErrSessionNotFound) {
		return nil, utils.NewHTTPError(http.StatusUnauthorized, msgSessionExpired, err)
	}
	if err != nil {
		return nil, err
	}
	store, err := s.states.Get(ctx, sessionID)
	if errors.Is(err, state.ErrSessionNotFound) {
		return nil, utils.NewHTTPError(http.StatusUnauthorized, msgSessionExpired, err)
	}
	if err != nil {
		return nil, err
	}

	api := s.client.WithToken(token)
	switch rec.Role {
	case model.RoleManager:
		if _, ok := s.pollers.Get(sessionID); !ok {
			s.pollers.Start(sessionID, store, api)
		}
	case model.RoleAdmin:
		if s.trackers != nil {
			if _, ok := s.trackers.Get(sessionID); !ok {
				s.trackers.Start(sessionID, token)
			}
		}
	}
	return &Session{ID: sessionID, Role: rec.Role, Store: store, API: api, Record: rec}, nil
}

// Refresh trades a refresh token for a new pair and extends the session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	if refreshToken == "" {
		return nil, utils.NewHTTPError(http.StatusBadRequest, "Refresh token required", nil)
	}
	pair, claims, err := s.tokens.RefreshTokens(refreshToken)
	if err != nil {
		return nil, utils.NewHTTPError(http.StatusUnauthorized, err.Error(), err)
	}
	err = s.sessions.Touch(ctx, claims.SessionID, s.now().Add(s.tokens.RefreshTTL()))
	if errors.Is(err, state.ErrSessionNotFound) {
		return nil, utils.NewHTTPError(http.StatusUnauthorized, msgSessionExpired, err)
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout stops the session's background work and forgets it.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	s.discard(ctx, sessionID)
	s.log.Info("user logged out", zap.String("session_id", sessionID))
	return nil
}

func (s *Service) discard(ctx context.Context, sessionID string) {
	s.pollers.Stop(sessionID)
	if s.trackers != nil {
		s.trackers.Stop(sessionID)
	}
	s.states.Drop(sessionID)
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.log.Warn("deleting session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Flush writes a session's state back if it changed.
func (s *Service) Flush(ctx context.Context, sessionID string) {
	if err := s.states.FlushSession(ctx, sessionID); err != nil {
		s.log.Warn("saving state failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Service) Signup(ctx context.Context, req backend.SignupRequest) (string, error) {
	req.Phone = model.SanitizePhone(req.Phone)
	var missing []string
	for _, f := range [][2]string{
		{"firstName", req.FirstName},
		{"lastName", req.LastName},
		{"phone", req.Phone},
		{"password", req.Password},
		{"passwordConfirm", req.PasswordConfirm},
	} {
		if f[1] == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return "", utils.NewHTTPError(http.StatusBadRequest, msgAllFields, &utils.ValidationError{Fields: missing})
	}
	if req.Password != req.PasswordConfirm {
		return "", utils.NewHTTPError(http.StatusBadRequest, "Passwords do not match", nil)
	}
	msg, err := s.client.Public().Signup(ctx, req)
	if err != nil {
		return "", upstreamError(err, "Signup failed. Please try again.")
	}
	return msg, nil
}

func (s *Service) ForgotPassword(ctx context.Context, phone string) (string, error) {
	phone = model.SanitizePhone(phone)
	if phone == "" {
		return "", utils.NewHTTPError(http.StatusBadRequest, "Phone number is required", nil)
	}
	msg, err := s.client.Public().RequestResetOTP(ctx, phone)
	if err != nil {
		return "", upstreamError(err, "Failed to send OTP")
	}
	return msg, nil
}

func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (string, error) {
	phone = model.SanitizePhone(phone)
	if phone == "" || code == "" {
		return "", utils.NewHTTPError(http.StatusBadRequest, msgAllFields, nil)
	}
	msg, err := s.client.Public().VerifyOTP(ctx, phone, code)
	if err != nil {
		return "", upstreamError(err, "OTP verification failed")
	}
	return msg, nil
}

func (s *Service) ResetPassword(ctx context.Context, req backend.ResetPasswordRequest) (string, error) {
	req.Phone = model.SanitizePhone(req.Phone)
	if req.Phone == "" || req.Code == "" || req.Password == "" || req.PasswordConfirm == "" {
		return "", utils.NewHTTPError(http.StatusBadRequest, msgAllFields, nil)
	}
	if req.Password != req.PasswordConfirm {
		return "", utils.NewHTTPError(http.StatusBadRequest, "Passwords do not match", nil)
	}
	msg, err := s.client.Public().ResetPasswordOTP(ctx, req)
	if err != nil {
		return "", upstreamError(err, "Password reset failed")
	}
	return msg, nil
}

// DeleteAccount removes the user's marketplace account and ends the session.
func (s *Service) DeleteAccount(ctx context.Context, sess *Session) error {
	if err := sess.API.DeleteMe(ctx); err != nil {
		return upstreamError(err, "Failed to delete account")
	}
	s.discard(ctx, sess.ID)
	return nil
}
