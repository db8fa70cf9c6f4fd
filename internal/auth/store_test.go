package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/tmcfarlane/parley/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemoryBackend(), slog.Default())
}

func TestCreateAccountAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.CreateAccount(ctx, "a@b.com", "pw", "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if !ok {
		t.Fatalf("CreateAccount() = false, want true")
	}

	ok, err = s.CreateAccount(ctx, "a@b.com", "other", "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("duplicate CreateAccount() error = %v", err)
	}
	if ok {
		t.Fatalf("duplicate CreateAccount() = true, want false")
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.CreateAccount(ctx, "a@b.com", "pw", "ip", "dev"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if !s.Authenticate(ctx, "a@b.com", "pw") {
		t.Fatalf("Authenticate(correct) = false, want true")
	}
	if s.Authenticate(ctx, "a@b.com", "wrong") {
		t.Fatalf("Authenticate(wrong password) = true, want false")
	}
	if s.Authenticate(ctx, "nobody@x.com", "pw") {
		t.Fatalf("Authenticate(unknown user) = true, want false")
	}
}

func TestAttachDetachSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.CreateAccount(ctx, "a@b.com", "pw", "ip", "dev"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if err := s.AttachSession(ctx, "a@b.com", "s1"); err != nil {
		t.Fatalf("AttachSession() error = %v", err)
	}
	if err := s.AttachSession(ctx, "a@b.com", "s2"); err != nil {
		t.Fatalf("AttachSession() error = %v", err)
	}

	ids := s.SessionIDs(ctx, "a@b.com")
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Fatalf("SessionIDs() = %v, want [s1 s2]", ids)
	}

	if err := s.DetachSession(ctx, "a@b.com", "s1"); err != nil {
		t.Fatalf("DetachSession() error = %v", err)
	}
	ids = s.SessionIDs(ctx, "a@b.com")
	if len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("after detach SessionIDs() = %v, want [s2]", ids)
	}

	// Detach of an absent id or user is a quiet no-op.
	if err := s.DetachSession(ctx, "a@b.com", "never"); err != nil {
		t.Fatalf("DetachSession(absent id) error = %v", err)
	}
	if err := s.DetachSession(ctx, "ghost@x.com", "s2"); err != nil {
		t.Fatalf("DetachSession(absent user) error = %v", err)
	}
}

func TestAttachSessionUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	err := s.AttachSession(ctx, "ghost@x.com", "s1")
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("AttachSession(unknown) error = %v, want ErrUnknownUser", err)
	}
}

func TestCorruptUserRecordTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	if err := backend.Store(ctx, "users", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	s := NewStore(backend, slog.Default())

	if s.Authenticate(ctx, "a@b.com", "pw") {
		t.Fatalf("Authenticate() on corrupt map = true, want false")
	}
	ok, err := s.CreateAccount(ctx, "a@b.com", "pw", "ip", "dev")
	if err != nil || !ok {
		t.Fatalf("CreateAccount() after corruption = %v, %v, want true, nil", ok, err)
	}
}
