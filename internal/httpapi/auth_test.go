package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"bloomtrack/backend/internal/cache"
	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount, _ domain.Profile) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return nil, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = "usr-" + user.Email
	}
	s.users[user.ID] = user
	created := user
	return &created, nil
}

func (s *userStoreStub) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *userStoreStub) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, userID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[userID]
	user.PasswordHash = passwordHash
	s.users[userID] = user
	s.updates++
	return nil
}

func TestSignupHashesPassword(t *testing.T) {
	stub := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, stub, cache.NewMemoryDenylist())

	resp, err := manager.Signup(context.Background(), domain.SignupRequest{
		Email:    "owner@example.com",
		Password: "secret-pass-1",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	user, err := stub.GetUserByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("user not saved: %v", err)
	}
	if user.PasswordHash == "secret-pass-1" {
		t.Fatalf("expected password to be hashed")
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", user.PasswordHash)
	}
}

func TestSignupRejectsWeakInput(t *testing.T) {
	stub := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, stub, cache.NewMemoryDenylist())

	if _, err := manager.Signup(context.Background(), domain.SignupRequest{
		Email:    "not-an-email",
		Password: "secret-pass-1",
	}); err == nil {
		t.Fatalf("expected error for invalid email")
	}
	if _, err := manager.Signup(context.Background(), domain.SignupRequest{
		Email:    "short@example.com",
		Password: "short",
	}); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestSigninUpgradesLegacyPlainPassword(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"usr-1": {
				ID:           "usr-1",
				Email:        "legacy@example.com",
				PasswordHash: "plain-old-pass",
				CreatedAt:    time.Now().UTC(),
			},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, stub, cache.NewMemoryDenylist())

	if _, err := manager.Signin(context.Background(), domain.SigninRequest{
		Email:    "legacy@example.com",
		Password: "plain-old-pass",
	}); err != nil {
		t.Fatalf("signin failed: %v", err)
	}

	user, err := stub.GetUserByID(context.Background(), "usr-1")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if user.PasswordHash == "plain-old-pass" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash, got %s", user.PasswordHash)
	}
	if stub.updates != 1 {
		t.Fatalf("expected exactly one password upgrade, got %d", stub.updates)
	}

	// The upgraded hash still verifies.
	if _, err := manager.Signin(context.Background(), domain.SigninRequest{
		Email:    "legacy@example.com",
		Password: "plain-old-pass",
	}); err != nil {
		t.Fatalf("signin after upgrade failed: %v", err)
	}
}

func TestParseTokenRejectsRevoked(t *testing.T) {
	stub := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, stub, cache.NewMemoryDenylist())

	resp, err := manager.Signup(context.Background(), domain.SignupRequest{
		Email:    "revoke@example.com",
		Password: "secret-pass-1",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := manager.ParseToken(context.Background(), resp.AccessToken); err != nil {
		t.Fatalf("parse before signout failed: %v", err)
	}

	if err := manager.Signout(context.Background(), resp.AccessToken); err != nil {
		t.Fatalf("signout failed: %v", err)
	}

	if _, err := manager.ParseToken(context.Background(), resp.AccessToken); err == nil {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	stub := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, stub, cache.NewMemoryDenylist())

	if _, err := manager.ParseToken(context.Background(), "not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}

	// A token signed with a different secret must not parse.
	other := NewAuthManager("other-secret", time.Hour, stub, cache.NewMemoryDenylist())
	resp, err := other.Signup(context.Background(), domain.SignupRequest{
		Email:    "foreign@example.com",
		Password: "secret-pass-1",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := manager.ParseToken(context.Background(), resp.AccessToken); err == nil {
		t.Fatalf("expected foreign-signed token to be rejected")
	}
}
