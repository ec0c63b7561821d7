package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookwyrm/internal/session"
	"bookwyrm/pkg/auth"
	"bookwyrm/pkg/domain"
	"bookwyrm/pkg/store"
	"bookwyrm/pkg/storage"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionSecret string
	SessionTTL    time.Duration

	// Covers is optional; book cover uploads are rejected when unset.
	Covers storage.ObjectStore

	// Overrides for tests.
	Store    store.Store
	Sessions store.SessionStore
}

// App is the core application service wiring storage, sessions, and the
// business rules around users, books, and reviews.
type App struct {
	store    store.Store
	sessions *session.Manager
	covers   storage.ObjectStore
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for the session store")
		}
		sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
	}

	codec, err := session.NewCodec(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("init session codec: %w", err)
	}

	return &App{
		store:    dataStore,
		sessions: session.NewManager(codec, sessionStore),
		covers:   cfg.Covers,
	}, nil
}

// Sessions exposes the session manager to the HTTP layer.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Login validates credentials and opens a session.
// Absent user and wrong password are indistinguishable to the caller.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.Create(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// Register creates a new BASIC non-admin user and opens a session.
func (a *App) Register(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	user, err := a.createUser("", name, email, password, domain.TierBasic, false)
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.Create(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session carried by the Cookie header.
func (a *App) Logout(cookieHeader string) error {
	return a.sessions.Destroy(cookieHeader)
}

// UserFromCookie resolves the Cookie header to the persisted user row.
// The row, not the cookie, is the authority for isAdmin and tier.
func (a *App) UserFromCookie(cookieHeader string) (domain.User, bool) {
	userID, ok := a.sessions.Read(cookieHeader)
	if !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

func (a *App) createUser(id, name, email, password string, tier domain.UserTier, isAdmin bool) (domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Tier:         tier,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}
