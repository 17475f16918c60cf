package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pocketchat/internal/storage"
	mytesting "pocketchat/internal/testing"
)

func bootstrap(t *testing.T) (*Store, *storage.Store) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	repo, err := storage.New(logger.Sugar(), storage.Config{Path: ":memory:", BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return New(logger.Sugar(), repo), repo
}

func TestSignupAndLogin(t *testing.T) {
	s, _ := bootstrap(t)
	ctx := context.Background()

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))
	require.True(t, s.Authenticated())

	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "alice", current.Username)
	require.False(t, current.IsPremium)
	require.Empty(t, current.Secret)
	require.NotEmpty(t, current.AvatarURL)

	s.Logout()
	require.False(t, s.Authenticated())

	require.Equal(t, ErrInvalidCredentials, s.Login(ctx, "a@x.com", "wrong"))
	require.False(t, s.Authenticated())

	require.NoError(t, s.Login(ctx, "a@x.com", "secret1"))
	current, ok = s.Current()
	require.True(t, ok)
	require.Equal(t, "alice", current.Username)
	require.False(t, current.IsPremium)
}

func TestSignupDuplicateEmail(t *testing.T) {
	s, repo := bootstrap(t)
	ctx := context.Background()

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))
	s.Logout()

	require.Equal(t, ErrAccountExists, s.Signup(ctx, "mallory", "a@x.com", "other22"))

	// the first account is unchanged
	registry, err := repo.LoadAccounts()
	require.NoError(t, err)
	require.Len(t, registry, 1)
	require.Equal(t, "alice", registry[0].Username)
	require.Equal(t, "secret1", registry[0].Secret)
}

func TestSignupMissingFields(t *testing.T) {
	s, _ := bootstrap(t)

	require.Equal(t, ErrMissingFields, s.Signup(context.Background(), "", "a@x.com", "secret1"))
	require.False(t, s.Authenticated())
}

func TestLoginInformationHiding(t *testing.T) {
	s, _ := bootstrap(t)
	ctx := context.Background()

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))
	s.Logout()

	// unknown email and wrong secret yield the same rejection
	unknownEmail := s.Login(ctx, "nobody@x.com", "secret1")
	wrongSecret := s.Login(ctx, "a@x.com", "wrong")
	require.Equal(t, ErrInvalidCredentials, unknownEmail)
	require.Equal(t, unknownEmail, wrongSecret)
}

func TestSessionRestoredFromMarker(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	repo, err := storage.New(logger.Sugar(), storage.Config{Path: ":memory:", BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	first := New(logger.Sugar(), repo)
	require.NoError(t, first.Signup(context.Background(), "alice", "a@x.com", "secret1"))

	// a fresh store on the same repository trusts the marker as-is
	second := New(logger.Sugar(), repo)
	require.True(t, second.Authenticated())
	current, ok := second.Current()
	require.True(t, ok)
	require.Equal(t, "alice", current.Username)
	require.Empty(t, current.Secret)

	second.Logout()
	third := New(logger.Sugar(), repo)
	require.False(t, third.Authenticated())
}

func TestUpgradeToPremium(t *testing.T) {
	s, repo := bootstrap(t)
	ctx := context.Background()

	// no session: no-op
	s.UpgradeToPremium()

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))
	s.UpgradeToPremium()

	current, ok := s.Current()
	require.True(t, ok)
	require.True(t, current.IsPremium)

	// mirrored to both the registry entry and the marker
	registry, err := repo.LoadAccounts()
	require.NoError(t, err)
	require.True(t, registry[0].IsPremium)

	marker, err := repo.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, marker)
	require.True(t, marker.IsPremium)
}

func TestUpdateProfile(t *testing.T) {
	s, repo := bootstrap(t)
	ctx := context.Background()

	require.Equal(t, ErrNoSession, s.UpdateProfile(ProfileUpdate{Username: "x", Email: "x@x.com"}))

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))
	require.NoError(t, s.Signup(ctx, "bob", "b@x.com", "secret2"))
	s.Logout()
	require.NoError(t, s.Login(ctx, "a@x.com", "secret1"))

	// taking another account's email is rejected
	require.Equal(t, ErrAccountExists, s.UpdateProfile(ProfileUpdate{Username: "alice", Email: "b@x.com"}))

	update := ProfileUpdate{
		Username:  "alice2",
		Email:     "a2@x.com",
		About:     "hi there",
		AvatarURL: "https://example.com/a.jpg",
	}
	require.NoError(t, s.UpdateProfile(update))

	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "alice2", current.Username)
	require.Equal(t, "a2@x.com", current.Email)
	require.Equal(t, "hi there", current.About)

	registry, err := repo.LoadAccounts()
	require.NoError(t, err)
	for _, account := range registry {
		if account.ID == current.ID {
			require.Equal(t, "alice2", account.Username)
			require.Equal(t, "secret1", account.Secret, "profile update must not touch the secret")
		}
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := bootstrap(t)
	ctx := context.Background()

	require.Equal(t, ErrNoSession, s.ChangePassword("a", "longenough", "longenough"))

	require.NoError(t, s.Signup(ctx, "alice", "a@x.com", "secret1"))

	require.Equal(t, ErrPasswordMismatch, s.ChangePassword("secret1", "longenough", "different"))
	require.Equal(t, ErrPasswordTooShort, s.ChangePassword("secret1", "short", "short"))
	require.Equal(t, ErrWrongPassword, s.ChangePassword("wrong", "longenough", "longenough"))

	require.NoError(t, s.ChangePassword("secret1", "secret2", "secret2"))

	s.Logout()
	require.Equal(t, ErrInvalidCredentials, s.Login(ctx, "a@x.com", "secret1"))
	require.NoError(t, s.Login(ctx, "a@x.com", "secret2"))
}

func TestLatencyHonorsContext(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	repo, err := storage.New(logger.Sugar(), storage.Config{Path: ":memory:", BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	s := New(logger.Sugar(), repo, WithLatency(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = s.Login(ctx, "a@x.com", "secret1")
	require.Equal(t, context.DeadlineExceeded, err)
	require.False(t, s.Authenticated())
}

func TestSubscribeNotified(t *testing.T) {
	s, _ := bootstrap(t)

	notified := 0
	s.Subscribe(func() { notified++ })

	require.NoError(t, s.Signup(context.Background(), mytesting.RandString(), mytesting.RandEmail(), "secret1"))
	require.Equal(t, 1, notified)

	s.Logout()
	require.Equal(t, 2, notified)
}
