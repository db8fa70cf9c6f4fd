// Package auth owns user accounts: creation, password verification, and
// the per-user list of owned session ids.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmcfarlane/parley/internal/storage"
)

// ErrUnknownUser is returned when a session is attached to an email that
// has no account.
var ErrUnknownUser = errors.New("auth: unknown user")

// usersKey is the single record holding the whole user map. Account churn
// is low-frequency, so one record under one mutex is enough.
const usersKey = "users"

// User is a durable account record. Accounts are never deleted; the only
// mutation after signup is the session id list.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	IPAddress    string    `json:"ip_address"`
	DeviceInfo   string    `json:"device_info"`
	Sessions     []string  `json:"sessions"`
}

// Store manages accounts on top of a storage backend. All mutations to the
// user map are serialized by a single mutex; reads share it too since they
// load the same record.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	log     *slog.Logger
}

func NewStore(backend storage.Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: backend, log: log}
}

func (s *Store) loadUsers(ctx context.Context) (map[string]*User, error) {
	data, err := s.backend.Load(ctx, usersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[string]*User), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	users := make(map[string]*User)
	if err := json.Unmarshal(data, &users); err != nil {
		// Treat a corrupt user map as empty rather than refusing to
		// serve. This loses data and must be visible in the logs.
		s.log.Error("user record is corrupt, treating as empty", "error", err)
		return make(map[string]*User), nil
	}
	return users, nil
}

func (s *Store) saveUsers(ctx context.Context, users map[string]*User) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.backend.Store(ctx, usersKey, data); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

// CreateAccount registers a new user. It returns false (with no error)
// when the email is already taken.
func (s *Store) CreateAccount(ctx context.Context, email, password, ip, device string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return false, err
	}
	if _, exists := users[email]; exists {
		return false, nil
	}

	users[email] = &User{
		Email:        email,
		PasswordHash: hashPassword(password),
		CreatedAt:    time.Now().UTC(),
		IPAddress:    ip,
		DeviceInfo:   device,
		Sessions:     []string{},
	}
	if err := s.saveUsers(ctx, users); err != nil {
		return false, err
	}
	s.log.Info("account created", "email", email)
	return true, nil
}

// Authenticate verifies email+password. Unknown accounts and wrong
// passwords are indistinguishable: both return false.
func (s *Store) Authenticate(ctx context.Context, email, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		s.log.Error("authenticate failed to load users", "error", err)
		return false
	}
	user, ok := users[email]
	if !ok {
		return false
	}
	match, err := verifyPassword(password, user.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash is unusable", "email", email, "error", err)
		return false
	}
	return match
}

// AttachSession appends a session id to the user's session list. Unlike
// the detach path this is strict: attaching to a missing user is an error,
// not a silent no-op, since it would orphan an owned session.
func (s *Store) AttachSession(ctx context.Context, email, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	user, ok := users[email]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	user.Sessions = append(user.Sessions, sessionID)
	return s.saveUsers(ctx, users)
}

// DetachSession removes a session id from the user's list. A missing user
// or an id not present in the list is a no-op.
func (s *Store) DetachSession(ctx context.Context, email, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	user, ok := users[email]
	if !ok {
		return nil
	}
	kept := user.Sessions[:0]
	for _, id := range user.Sessions {
		if id != sessionID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(user.Sessions) {
		return nil
	}
	user.Sessions = kept
	return s.saveUsers(ctx, users)
}

// SessionIDs returns the ids owned by email, empty for unknown users.
func (s *Store) SessionIDs(ctx context.Context, email string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		s.log.Error("failed to load users for session listing", "email", email, "error", err)
		return nil
	}
	user, ok := users[email]
	if !ok {
		return nil
	}
	out := make([]string, len(user.Sessions))
	copy(out, user.Sessions)
	return out
}
