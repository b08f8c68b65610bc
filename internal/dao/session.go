package dao

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xorcism-go/internal/storage"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrPositionConflict means another writer advanced the session first
	ErrPositionConflict = errors.New("session position changed")
)

// Session is a resumable munge stream. Each chunk submitted to a session
// continues the key phase where the previous chunk stopped.
type Session struct {
	ID        string    `json:"id"`
	KeyName   string    `json:"key"`
	Position  uint64    `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionDAO handles session data access
type SessionDAO struct {
	store *storage.Store
}

// NewSessionDAO creates a new session DAO
func NewSessionDAO(store *storage.Store) *SessionDAO {
	return &SessionDAO{store: store}
}

// Create starts a session for keyName at position start
func (d *SessionDAO) Create(keyName string, start uint64) (*Session, error) {
	now := time.Now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		KeyName:   keyName,
		Position:  start,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.SetJSON(storage.BucketSessions, s.ID, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves a session
func (d *SessionDAO) Get(id string) (*Session, error) {
	var s Session
	found, err := d.store.GetJSON(storage.BucketSessions, id, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// Advance moves the session cursor from `from` forward by n bytes. It fails
// with ErrPositionConflict if the stored position is no longer `from`.
func (d *SessionDAO) Advance(id string, from, n uint64) (*Session, error) {
	var updated Session
	err := d.store.Update(storage.BucketSessions, id, func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, ErrSessionNotFound
		}
		if err := json.Unmarshal(old, &updated); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", id, err)
		}
		if updated.Position != from {
			return nil, fmt.Errorf("%w: at %d, expected %d", ErrPositionConflict, updated.Position, from)
		}
		updated.Position += n
		updated.UpdatedAt = time.Now().UTC()
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a session
func (d *SessionDAO) Delete(id string) error {
	if _, err := d.Get(id); err != nil {
		return err
	}
	return d.store.Delete(storage.BucketSessions, id)
}
