package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/ui"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// Persistence is the client-side key-value state that survives restarts.
type Persistence interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	User(ctx context.Context) (*user.User, error)
	SetUser(ctx context.Context, u *user.User) error
	DefaultAge(ctx context.Context) (int, bool, error)
	SetDefaultAge(ctx context.Context, age int) error
	// ClearSession removes token and user but keeps preferences such as the default age.
	ClearSession(ctx context.Context) error
}

// UserFetcher loads the profile of the token owner.
type UserFetcher interface {
	CurrentUser(ctx context.Context) (*user.User, error)
}

// Manager owns the signed-in state. AuthRequired errors are fatal beyond the
// current operation: they clear every cached entity and route to sign-in.
type Manager struct {
	persistence Persistence
	store       conversation.Store
	navigator   ui.Navigator
	notifier    ui.Notifier
	log         zerolog.Logger
	now         func() time.Time

	mu        sync.Mutex
	token     string
	loaded    bool
	onSignOut []func()
}

// NewManager creates a session manager.
func NewManager(persistence Persistence, store conversation.Store, navigator ui.Navigator, notifier ui.Notifier, log zerolog.Logger) *Manager {
	return &Manager{
		persistence: persistence,
		store:       store,
		navigator:   navigator,
		notifier:    notifier,
		log:         log.With().Str("component", "session-manager").Logger(),
		now:         time.Now,
	}
}

// OnSignOut registers a hook run after the session is cleared, used to drop view caches.
func (m *Manager) OnSignOut(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSignOut = append(m.onSignOut, fn)
}

// Token returns the current session token, loading it from persistence once.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		token, err := m.persistence.Token(ctx)
		if err != nil {
			return "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load session token")
		}
		m.token = token
		m.loaded = true
	}
	return m.token, nil
}

// RequireSession fails with AuthRequired when there is no usable token.
func (m *Manager) RequireSession(ctx context.Context) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAuthRequired,
			"sign in required", nil, "6b1f0e2d-3c4a-4b5e-8f6a-7b8c9d0e1f2a")
	}
	if m.expired(token) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAuthRequired,
			"session expired", nil, "9d8c7b6a-5f4e-4d3c-b2a1-0f9e8d7c6b5a")
	}
	return nil
}

// expired inspects the unverified exp claim. Opaque tokens never expire client side.
func (m *Manager) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !m.now().Before(exp.Time)
}

// SignIn stores the token, then the user record. When u is nil the profile is
// fetched from the backend; a failed fetch leaves no token behind.
func (m *Manager) SignIn(ctx context.Context, token string, u *user.User, fetcher UserFetcher) (*user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"token cannot be empty", nil, "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
	}
	if m.expired(token) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAuthRequired,
			"token already expired", nil, "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e")
	}

	if err := m.persistence.SetToken(ctx, token); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to store session token")
	}
	m.mu.Lock()
	m.token = token
	m.loaded = true
	m.mu.Unlock()

	if u == nil && fetcher != nil {
		fetched, err := fetcher.CurrentUser(ctx)
		if err != nil {
			m.clear(ctx)
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load user profile")
		}
		u = fetched
	}
	if u != nil {
		if err := m.persistence.SetUser(ctx, u); err != nil {
			m.log.Warn().Err(err).Msg("failed to cache user record")
		}
		m.store.SetUser(u)
	}

	m.log.Info().Bool("has_user", u != nil).Msg("signed in")
	return u.Clone(), nil
}

// CurrentUser returns the session user, restoring it from persistence when the store is empty.
func (m *Manager) CurrentUser(ctx context.Context) (*user.User, error) {
	if u := m.store.User(); u != nil {
		return u, nil
	}
	u, err := m.persistence.User(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load cached user")
	}
	if u != nil {
		m.store.SetUser(u)
	}
	return u, nil
}

// SignOut clears persisted credentials, every cached entity and view cache, then routes to sign-in.
func (m *Manager) SignOut(ctx context.Context) {
	m.clear(ctx)
	if m.navigator != nil {
		m.navigator.Navigate(ui.RouteSignIn)
	}
	m.log.Info().Msg("signed out")
}

func (m *Manager) clear(ctx context.Context) {
	if err := m.persistence.ClearSession(ctx); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear persisted session")
	}
	m.store.Reset()

	m.mu.Lock()
	m.token = ""
	m.loaded = true
	hooks := append([]func(){}, m.onSignOut...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// HandleError is the single funnel for errors that reach the front end.
// AuthRequired signs the user out; everything else becomes a toast.
func (m *Manager) HandleError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if platformerrors.IsErrorType(err, platformerrors.ErrorTypeAuthRequired) {
		m.SignOut(ctx)
	}
	if m.notifier != nil {
		m.notifier.Error(platformerrors.UserMessage(err))
	}
	return err
}
