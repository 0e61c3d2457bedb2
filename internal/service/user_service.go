package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"advocat/internal/models"
	"advocat/internal/remote"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthAPI is the part of the remote API a session talks to.
type AuthAPI interface {
	Login(ctx context.Context, form models.LoginForm) (*models.LoginResponse, error)
	Me(ctx context.Context) (*models.UserMe, error)
	EmailExists(ctx context.Context, email string) (json.RawMessage, error)
}

// SessionView is what a visitor sees of its own session.
type SessionView struct {
	IsLoggedIn bool           `json:"isLoggedIn"`
	User       *models.UserMe `json:"user"`
	Roles      []string       `json:"roles"`
}

// Session is the auth state of one visitor. It implements remote.Authenticator
// so that the visitor's remote client carries its token.
type Session struct {
	visitorID string
	state     *StateService
	api       AuthAPI
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	token    string
	loggedIn bool
	user     *models.UserMe
}

func NewSession(visitorID string, state *StateService, logger *zerolog.Logger) *Session {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "session").Str("visitor_id", visitorID).Logger()
	}
	return &Session{visitorID: visitorID, state: state, logger: l, now: time.Now}
}

// Bind sets the remote API used by the session, usually a client derived
// with WithAuth(session).
func (s *Session) Bind(api AuthAPI) {
	s.api = api
}

// Restore puts back a persisted token. An already expired token is dropped.
func (s *Session) Restore(token string) {
	if token == "" {
		return
	}
	if tokenExpired(token, s.now()) {
		s.logger.Info().Msg("persisted token expired, dropping it")
		s.Logout(context.Background())
		return
	}
	s.mu.Lock()
	s.token = token
	s.loggedIn = true
	s.mu.Unlock()
}

// Token returns the bearer token, logging the visitor out first when the
// token's exp claim is in the past.
func (s *Session) Token() string {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return ""
	}
	if tokenExpired(token, s.now()) {
		s.logger.Info().Msg("token expired, logging out")
		s.Logout(context.Background())
		return ""
	}
	return token
}

// Unauthorized is called by the remote client after a 401.
func (s *Session) Unauthorized() {
	s.Logout(context.Background())
}

func (s *Session) Login(ctx context.Context, form models.LoginForm) error {
	if err := models.Validate(form); err != nil {
		return err
	}
	resp, err := s.api.Login(ctx, form)
	if err != nil {
		s.logger.Error().Err(err).Msg("login failed")
		return err
	}
	if resp == nil || resp.Token == "" {
		s.logger.Error().Msg("login answered without token")
		return remote.ErrNoToken
	}

	s.mu.Lock()
	s.token = resp.Token
	s.loggedIn = true
	s.user = nil
	s.mu.Unlock()

	if s.state != nil {
		if err := s.state.SaveToken(ctx, s.visitorID, resp.Token); err != nil {
			s.logger.Warn().Err(err).Msg("token not persisted")
		}
	}

	if _, err := s.Me(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("roles not loaded after login")
	}
	return nil
}

// Me refreshes the current user and roles.
func (s *Session) Me(ctx context.Context) (*models.UserMe, error) {
	me, err := s.api.Me(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch current user failed")
		return nil, err
	}
	s.mu.Lock()
	if s.loggedIn {
		s.user = me
	}
	s.mu.Unlock()
	return me, nil
}

// EnsureUser loads the user once for a logged in visitor whose roles are unknown,
// e.g. after a token was restored.
func (s *Session) EnsureUser(ctx context.Context) {
	s.mu.RLock()
	need := s.loggedIn && s.user == nil
	s.mu.RUnlock()
	if need {
		_, _ = s.Me(ctx)
	}
}

func (s *Session) EmailExists(ctx context.Context, email string) (json.RawMessage, error) {
	resp, err := s.api.EmailExists(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("email lookup failed")
		return nil, err
	}
	return resp, nil
}

func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// IsAdmin is false while roles are unknown.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn && s.user.HasRole(models.RoleAdmin)
}

func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.loggedIn = false
	s.user = nil
	s.mu.Unlock()

	if s.state != nil {
		if err := s.state.ClearToken(ctx, s.visitorID); err != nil {
			s.logger.Warn().Err(err).Msg("persisted token not cleared")
		}
	}
}

func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := SessionView{IsLoggedIn: s.loggedIn, User: s.user, Roles: []string{}}
	if s.user != nil && s.user.Roles != nil {
		v.Roles = append(v.Roles, s.user.Roles...)
	}
	return v
}

// tokenExpired reads the exp claim without verifying the signature. Tokens
// that are not JWTs or carry no exp never expire here; the remote API still
// answers 401 for them.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// RouteMeta are the access requirements of a route.
type RouteMeta struct {
	RequiresAuth  bool
	RequiresAdmin bool
}

// Decision is the outcome of the route guard.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard decides whether the visitor may enter a route; denied visitors go to "/".
func Guard(ctx context.Context, s *Session, meta RouteMeta) Decision {
	if !meta.RequiresAuth && !meta.RequiresAdmin {
		return Decision{Allow: true}
	}
	if s == nil || !s.IsLoggedIn() {
		return Decision{Redirect: "/"}
	}
	if meta.RequiresAdmin {
		s.EnsureUser(ctx)
		if !s.IsAdmin() {
			return Decision{Redirect: "/"}
		}
	}
	return Decision{Allow: true}
}
