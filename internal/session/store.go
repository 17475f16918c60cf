package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"pocketchat/internal/storage"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrAccountExists      = errors.New("account with that email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
	ErrWrongPassword      = errors.New("current password does not match")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password too short")
)

// MinSecretLength is the minimum accepted password length.
const MinSecretLength = 6

// Store owns the account registry and the current-session identity.
// Every mutating operation mirrors the affected records to the
// repository before returning, so a restart reconstructs the same
// state.
type Store struct {
	logger  *zap.SugaredLogger
	repo    *storage.Store
	latency time.Duration

	current *storage.Account
	subs    []func()
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Username  string
	Email     string
	About     string
	AvatarURL string
}

// New returns a session Store bound to the provided repository. If a
// session marker is persisted it is trusted as-is and the session is
// established without re-validating credentials; an absent or
// unreadable marker leaves the store unauthenticated.
func New(logger *zap.SugaredLogger, repo *storage.Store, opts ...Option) *Store {
	s := &Store{
		logger: logger,
		repo:   repo,
	}

	for _, opt := range opts {
		opt.apply(s)
	}

	marker, err := repo.LoadSession()
	if err != nil {
		logger.Warnf("session marker unreadable, starting unauthenticated: %v", err)
		return s
	}
	if marker != nil {
		s.current = marker
		logger.Debugf("Restored session for account %s", marker.ID)
	}

	return s
}

// Authenticated reports whether a session is established
func (s *Store) Authenticated() bool {
	return s.current != nil
}

// Current returns the session account (without secret) if a session is
// established
func (s *Store) Current() (storage.Account, bool) {
	if s.current == nil {
		return storage.Account{}, false
	}
	return *s.current, true
}

// Subscribe registers fn to be called after every session mutation.
// The UI layer uses this as its re-render hook.
func (s *Store) Subscribe(fn func()) {
	s.subs = append(s.subs, fn)
}

func (s *Store) notify() {
	for _, fn := range s.subs {
		fn()
	}
}

// delay simulates the original network round-trip before login and
// signup resolve. It respects ctx cancellation.
func (s *Store) delay(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Login establishes a session for the account matching (email, secret)
// exactly. Unknown email and wrong secret are indistinguishable to the
// caller.
func (s *Store) Login(ctx context.Context, email, secret string) error {
	s.logger.Debugf("Login attempt for %s", email)

	if err := s.delay(ctx); err != nil {
		return err
	}

	for _, account := range s.loadRegistry() {
		if account.Email == email && account.Secret == secret {
			current := account.WithoutSecret()
			s.current = &current
			s.persistMarker(current)
			s.notify()

			s.logger.Debugf("Established session for account %s", current.ID)
			return nil
		}
	}

	return ErrInvalidCredentials
}

// Signup registers a new account and establishes a session for it
func (s *Store) Signup(ctx context.Context, username, email, secret string) error {
	s.logger.Debugf("Signup attempt for %s", email)

	if username == "" || email == "" || secret == "" {
		return ErrMissingFields
	}

	if err := s.delay(ctx); err != nil {
		return err
	}

	registry := s.loadRegistry()
	for _, account := range registry {
		if account.Email == email {
			return ErrAccountExists
		}
	}

	account := storage.Account{
		ID:        storage.NewID(),
		Username:  username,
		Email:     email,
		Secret:    secret,
		AvatarURL: randomAvatarURL(),
		IsPremium: false,
		JoinedAt:  time.Now(),
	}

	s.persistRegistry(append(registry, account))

	current := account.WithoutSecret()
	s.current = &current
	s.persistMarker(current)
	s.notify()

	s.logger.Debugf("Created account %s", account.ID)
	return nil
}

// Logout clears the session and its persisted marker. The registry is
// untouched.
func (s *Store) Logout() {
	if s.current == nil {
		return
	}

	s.logger.Debugf("Closing session for account %s", s.current.ID)

	s.current = nil
	if err := s.repo.ClearSession(); err != nil {
		s.logger.Warnf("clearing session marker: %v", err)
	}
	s.notify()
}

// UpgradeToPremium flips the premium flag on the session account,
// mirroring it to the registry entry and the session marker. Without a
// session it is a no-op.
func (s *Store) UpgradeToPremium() {
	if s.current == nil {
		return
	}

	s.current.IsPremium = true

	registry := s.loadRegistry()
	for i := range registry {
		if registry[i].ID == s.current.ID {
			registry[i].IsPremium = true
		}
	}
	s.persistRegistry(registry)
	s.persistMarker(*s.current)
	s.notify()

	s.logger.Debugf("Upgraded account %s to premium", s.current.ID)
}

// UpdateProfile mutates the editable fields of the session account.
// Email uniqueness is re-checked against the registry.
func (s *Store) UpdateProfile(update ProfileUpdate) error {
	if s.current == nil {
		return ErrNoSession
	}
	if update.Username == "" || update.Email == "" {
		return ErrMissingFields
	}

	registry := s.loadRegistry()
	for _, account := range registry {
		if account.Email == update.Email && account.ID != s.current.ID {
			return ErrAccountExists
		}
	}

	for i := range registry {
		if registry[i].ID == s.current.ID {
			registry[i].Username = update.Username
			registry[i].Email = update.Email
			registry[i].About = update.About
			registry[i].AvatarURL = update.AvatarURL
		}
	}
	s.persistRegistry(registry)

	s.current.Username = update.Username
	s.current.Email = update.Email
	s.current.About = update.About
	s.current.AvatarURL = update.AvatarURL
	s.persistMarker(*s.current)
	s.notify()

	return nil
}

// ChangePassword replaces the session account's secret after
// re-verifying the current one against the registry entry
func (s *Store) ChangePassword(current, next, confirm string) error {
	if s.current == nil {
		return ErrNoSession
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	if len(next) < MinSecretLength {
		return ErrPasswordTooShort
	}

	registry := s.loadRegistry()
	for i := range registry {
		if registry[i].ID != s.current.ID {
			continue
		}
		if registry[i].Secret != current {
			return ErrWrongPassword
		}
		registry[i].Secret = next
		s.persistRegistry(registry)
		return nil
	}

	// session account missing from the registry, the marker is stale
	return ErrNoSession
}

// loadRegistry treats repository read faults as recoverable: a warning
// is logged and an empty registry is used.
func (s *Store) loadRegistry() []storage.Account {
	registry, err := s.repo.LoadAccounts()
	if err != nil {
		s.logger.Warnf("account registry unreadable, using empty registry: %v", err)
		return nil
	}
	return registry
}

func (s *Store) persistRegistry(registry []storage.Account) {
	if err := s.repo.SaveAccounts(registry); err != nil {
		s.logger.Warnf("persisting account registry: %v", err)
	}
}

func (s *Store) persistMarker(account storage.Account) {
	if err := s.repo.SaveSession(account); err != nil {
		s.logger.Warnf("persisting session marker: %v", err)
	}
}

// randomAvatarURL picks a default portrait for a fresh account
func randomAvatarURL() string {
	gender := "men"
	if rand.Intn(2) == 0 {
		gender = "women"
	}
	return fmt.Sprintf("https://randomuser.me/api/portraits/%s/%d.jpg", gender, rand.Intn(99))
}
