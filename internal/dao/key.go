package dao

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/xorcism-go/internal/cache"
	"github.com/xorcism-go/internal/storage"
	"github.com/xorcism-go/internal/xorcism"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrKeyExists      = errors.New("key already exists")
	ErrInvalidKeyName = errors.New("invalid key name")
)

var keyNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// KeyProfile is a named, stored key. Material is kept as given and decoded
// according to Source on use.
type KeyProfile struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Material  string    `json:"material"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyDAO handles key profile data access
type KeyDAO struct {
	store *storage.Store
	cache *cache.Cache[[]byte]
}

// NewKeyDAO creates a new key DAO. keys may be nil to disable caching.
func NewKeyDAO(store *storage.Store, keys *cache.Cache[[]byte]) *KeyDAO {
	return &KeyDAO{store: store, cache: keys}
}

// validate checks the name and that the material decodes to a usable key
func validate(p KeyProfile) error {
	if !keyNamePattern.MatchString(p.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyName, p.Name)
	}
	if _, err := xorcism.DecodeKey(xorcism.SourceKind(p.Source), p.Material); err != nil {
		return err
	}
	return nil
}

// Create stores a new key profile
func (d *KeyDAO) Create(p KeyProfile) (*KeyProfile, error) {
	if p.Source == "" {
		p.Source = string(xorcism.SourceRaw)
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	p.CreatedAt = time.Now().UTC()
	err := d.store.Update(storage.BucketKeys, p.Name, func(old []byte) ([]byte, error) {
		if old != nil {
			return nil, ErrKeyExists
		}
		return json.Marshal(p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Put creates or replaces a key profile
func (d *KeyDAO) Put(p KeyProfile) (*KeyProfile, error) {
	if p.Source == "" {
		p.Source = string(xorcism.SourceRaw)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := d.store.SetJSON(storage.BucketKeys, p.Name, p); err != nil {
		return nil, err
	}
	d.invalidate(p.Name)
	return &p, nil
}

// Get retrieves a key profile
func (d *KeyDAO) Get(name string) (*KeyProfile, error) {
	var p KeyProfile
	found, err := d.store.GetJSON(storage.BucketKeys, name, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return &p, nil
}

// List returns all key profiles sorted by name
func (d *KeyDAO) List() ([]KeyProfile, error) {
	all, err := d.store.GetAll(storage.BucketKeys)
	if err != nil {
		return nil, err
	}

	profiles := make([]KeyProfile, 0, len(all))
	for name, raw := range all {
		var p KeyProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode key %s: %w", name, err)
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Delete removes a key profile
func (d *KeyDAO) Delete(name string) error {
	if _, err := d.Get(name); err != nil {
		return err
	}
	if err := d.store.Delete(storage.BucketKeys, name); err != nil {
		return err
	}
	d.invalidate(name)
	return nil
}

// Resolve returns the decoded key bytes for a profile
func (d *KeyDAO) Resolve(name string) ([]byte, error) {
	load := func() ([]byte, error) {
		p, err := d.Get(name)
		if err != nil {
			return nil, err
		}
		return xorcism.DecodeKey(xorcism.SourceKind(p.Source), p.Material)
	}
	if d.cache == nil {
		return load()
	}
	return d.cache.GetOrLoad(name, load)
}

// NewMunger builds a munger for the named key with its cursor at pos
func (d *KeyDAO) NewMunger(name string, pos uint64) (*xorcism.Munger, error) {
	key, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	return xorcism.NewAt(key, pos)
}

func (d *KeyDAO) invalidate(name string) {
	if d.cache != nil {
		d.cache.Delete(name)
	}
}
