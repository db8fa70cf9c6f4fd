// Package chat owns session records and their append-only message logs:
// create, append, windowed read, delete, and list-with-preview, with
// per-session serialization so concurrent appends never lose a message.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmcfarlane/parley/internal/ident"
	"github.com/tmcfarlane/parley/internal/storage"
)

var (
	// ErrInvalidID rejects ids that fail the identifier invariant. The
	// check runs before any storage access.
	ErrInvalidID = errors.New("chat: invalid session id")

	// ErrNotFound is returned for ids with no stored session.
	ErrNotFound = errors.New("chat: session not found")
)

// OwnerIndex is the slice of the credential store the session store needs
// to keep a user's session list in sync with the records that exist.
type OwnerIndex interface {
	AttachSession(ctx context.Context, email, sessionID string) error
	DetachSession(ctx context.Context, email, sessionID string) error
	SessionIDs(ctx context.Context, email string) []string
}

// Config tunes the read-side windows.
type Config struct {
	// HistoryWindow is how many trailing messages History returns.
	HistoryWindow int
	// PreviewMax caps the preview string, in bytes.
	PreviewMax int
}

// Store manages session records on a storage backend. Mutations to one
// session id are serialized by a keyed lock; different ids proceed in
// parallel.
type Store struct {
	backend       storage.Backend
	owners        OwnerIndex
	locks         *storage.LockTable
	log           *slog.Logger
	historyWindow int
	previewMax    int
}

func NewStore(backend storage.Backend, owners OwnerIndex, log *slog.Logger, cfg Config) *Store {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.PreviewMax <= 0 {
		cfg.PreviewMax = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		backend:       backend,
		owners:        owners,
		locks:         storage.NewLockTable(),
		log:           log,
		historyWindow: cfg.HistoryWindow,
		previewMax:    cfg.PreviewMax,
	}
}

// Create persists a fresh empty session and, when owner is non-empty,
// links it into that user's session list. A failed link does not leave an
// orphaned record behind: the session is removed again and the error
// surfaces.
func (s *Store) Create(ctx context.Context, owner string) (string, error) {
	id := ident.New()
	sess := &Session{
		SessionID: id,
		UserEmail: owner,
		CreatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
	if err := s.save(ctx, sess); err != nil {
		return "", err
	}

	if owner != "" {
		if err := s.owners.AttachSession(ctx, owner, id); err != nil {
			if _, delErr := s.backend.Delete(ctx, id); delErr != nil {
				s.log.Error("failed to remove session after attach failure",
					"session_id", id, "error", delErr)
			}
			return "", fmt.Errorf("attach session to %s: %w", owner, err)
		}
	}
	return id, nil
}

// Get loads a session. Malformed ids are rejected before storage is
// touched; corrupt records are treated as absent and logged.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if !ident.Valid(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.load(ctx, id)
}

// AddMessage appends one message and durably rewrites the record. A
// missing id materializes a fresh ownerless session: clients that kept an
// id across a wipe still get a working thread instead of an error.
func (s *Store) AddMessage(ctx context.Context, id, role, content string) error {
	if !ident.Valid(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sess = &Session{
			SessionID: id,
			CreatedAt: time.Now().UTC(),
			Messages:  []Message{},
		}
	} else if err != nil {
		return err
	}

	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return s.save(ctx, sess)
}

// History returns the last HistoryWindow messages, oldest first. Unknown
// and malformed ids yield an empty history.
func (s *Store) History(ctx context.Context, id string) []Message {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil
	}
	msgs := sess.Messages
	if len(msgs) > s.historyWindow {
		msgs = msgs[len(msgs)-s.historyWindow:]
	}
	return msgs
}

// HistoryForPrompt is History reduced to role+content for the assistant.
func (s *Store) HistoryForPrompt(ctx context.Context, id string) []PromptMessage {
	msgs := s.History(ctx, id)
	if len(msgs) == 0 {
		return nil
	}
	out := make([]PromptMessage, len(msgs))
	for i, m := range msgs {
		out[i] = PromptMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Delete removes a session record. It returns false for malformed ids and
// for records that no longer exist, so a repeated delete is a quiet no-op.
// When requester is non-empty the id is also detached from that user's
// session list. Whether requester actually owns the session is the
// caller's check.
func (s *Store) Delete(ctx context.Context, id, requester string) (bool, error) {
	if !ident.Valid(id) {
		return false, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	deleted, err := s.backend.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	if !deleted {
		return false, nil
	}

	if requester != "" {
		if err := s.owners.DetachSession(ctx, requester, id); err != nil {
			// The record is already gone; the stale back-reference is
			// skipped by ListWithPreview, so log rather than fail.
			s.log.Error("failed to detach deleted session",
				"session_id", id, "email", requester, "error", err)
		}
	}
	return true, nil
}

// ListWithPreview loads every session the owner references and projects it
// for display. Ids that no longer resolve to a record are skipped.
func (s *Store) ListWithPreview(ctx context.Context, owner string) []Preview {
	ids := s.owners.SessionIDs(ctx, owner)
	previews := make([]Preview, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			s.log.Warn("skipping unresolvable session reference",
				"session_id", id, "email", owner, "error", err)
			continue
		}
		previews = append(previews, Preview{
			SessionID:    sess.SessionID,
			CreatedAt:    sess.CreatedAt,
			Preview:      s.preview(sess.Messages),
			MessageCount: len(sess.Messages),
		})
	}
	return previews
}

// preview picks the first user-authored message, truncated by raw byte
// length.
func (s *Store) preview(msgs []Message) string {
	for _, m := range msgs {
		if m.Role != "user" {
			continue
		}
		if len(m.Content) > s.previewMax {
			return m.Content[:s.previewMax]
		}
		return m.Content
	}
	return ""
}

func (s *Store) load(ctx context.Context, id string) (*Session, error) {
	data, err := s.backend.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Availability over strictness: a record that no longer parses
		// is served as absent. That silently sheds data, so shout.
		s.log.Error("session record is corrupt, treating as absent",
			"session_id", id, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &sess, nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.SessionID, err)
	}
	if err := s.backend.Store(ctx, sess.SessionID, data); err != nil {
		return fmt.Errorf("save session %s: %w", sess.SessionID, err)
	}
	return nil
}
