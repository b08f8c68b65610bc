package xorcism

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// SourceKind names how key material is turned into key bytes.
type SourceKind string

const (
	SourceRaw        SourceKind = "raw"
	SourceHex        SourceKind = "hex"
	SourceBase64     SourceKind = "base64"
	SourcePassphrase SourceKind = "passphrase"
)

const (
	passphraseSalt   = "xorcism-key"
	passphraseRounds = 1000
	passphraseKeyLen = 32
)

var (
	ErrUnknownSource = errors.New("xorcism: unsupported key source")
	ErrKeyMaterial   = errors.New("xorcism: cannot decode key material")
)

// KeyDecoder turns key material into key bytes.
type KeyDecoder func(material string) ([]byte, error)

var (
	sourcesMu sync.RWMutex
	sources   = make(map[SourceKind]KeyDecoder)
)

func init() {
	RegisterSource(SourceRaw, func(material string) ([]byte, error) {
		return []byte(material), nil
	})
	RegisterSource(SourceHex, func(material string) ([]byte, error) {
		return hex.DecodeString(strings.TrimSpace(material))
	})
	RegisterSource(SourceBase64, func(material string) ([]byte, error) {
		return base64.StdEncoding.DecodeString(strings.TrimSpace(material))
	})
	RegisterSource(SourcePassphrase, func(material string) ([]byte, error) {
		if material == "" {
			return nil, nil
		}
		return DerivePassphraseKey(material), nil
	})
}

// RegisterSource adds or replaces a key decoder.
func RegisterSource(kind SourceKind, decoder KeyDecoder) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	sources[kind] = decoder
}

// DecodeKey decodes material with the decoder registered for kind. An empty
// kind means raw. The result is never empty.
func DecodeKey(kind SourceKind, material string) ([]byte, error) {
	if kind == "" {
		kind = SourceRaw
	}

	sourcesMu.RLock()
	decoder, ok := sources[kind]
	sourcesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, kind)
	}

	key, err := decoder(material)
	if err != nil {
		return nil, fmt.Errorf("%w as %s: %w", ErrKeyMaterial, kind, err)
	}
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// NewFromSource decodes material and builds a munger at pos.
func NewFromSource(kind SourceKind, material string, pos uint64) (*Munger, error) {
	key, err := DecodeKey(kind, material)
	if err != nil {
		return nil, err
	}
	return NewAt(key, pos)
}

// DerivePassphraseKey stretches a passphrase into a 32 byte key with
// PBKDF2-SHA256 and a fixed salt, so the same passphrase always yields the
// same key.
func DerivePassphraseKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(passphraseSalt), passphraseRounds, passphraseKeyLen, sha256.New)
}

// ListSources returns the registered source kinds in sorted order.
func ListSources() []SourceKind {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()

	kinds := make([]SourceKind, 0, len(sources))
	for k := range sources {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsRegisteredSource reports whether kind has a decoder.
func IsRegisteredSource(kind SourceKind) bool {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	_, ok := sources[kind]
	return ok
}
