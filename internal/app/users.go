package app

import (
	"fmt"
	"strings"
	"time"

	"bookwyrm/pkg/domain"
)

// defaultAdminCreatedPassword seeds accounts created from the admin grid.
// Those users are expected to change it on first login.
const defaultAdminCreatedPassword = "changeme123"

// ListUsers returns all users (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// GetUser returns one user.
func (a *App) GetUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// AdminCreateUser creates a user from the management grid. The default
// password is issued hashed, never stored as given.
func (a *App) AdminCreateUser(id, name, email string, tier domain.UserTier, isAdmin bool) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	if tier == "" {
		tier = domain.TierBasic
	}
	if tier != domain.TierBasic && tier != domain.TierPremier {
		return domain.User{}, fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	return a.createUser(id, name, email, defaultAdminCreatedPassword, tier, isAdmin)
}

// AdminUpdateUser edits name/email/tier/isAdmin of an existing user.
func (a *App) AdminUpdateUser(id, name, email string, tier domain.UserTier, isAdmin bool) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	if tier != domain.TierBasic && tier != domain.TierPremier {
		return domain.User{}, fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}
	if email != user.Email {
		existing, ok, err := a.store.GetUserByEmail(email)
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if ok && existing.ID != user.ID {
			return domain.User{}, ErrEmailAlreadyExists
		}
	}
	user.Name = name
	user.Email = email
	user.Tier = tier
	user.IsAdmin = isAdmin
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// AdminDeleteUser removes a user; deletion is blocked while reviews
// reference it.
func (a *App) AdminDeleteUser(id string) error {
	_, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return a.store.DeleteUser(id)
}
