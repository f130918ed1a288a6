// Package entry defines the persisted cache entry and its wire form.
package entry

import (
	"encoding/json"
	"fmt"
	"time"
)

// CacheEntry is one memoized result plus its bookkeeping timestamps.
// Entries are owned by the entry store; the cache controller reads them
// but never mutates them directly.
type CacheEntry struct {
	Key            string
	Payload        []byte // codec-encoded function result
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpireAt       time.Time // zero => no expiration
}

// Expired reports whether the entry's expiration instant has passed.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && now.After(e.ExpireAt)
}

// envelope is the JSON object persisted per entry. The payload travels as
// opaque bytes so the value codec can be anything, while the envelope
// itself stays readable with standard tooling.
type envelope struct {
	Version        int       `json:"v"`
	Key            string    `json:"key"`
	Payload        []byte    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpireAt       time.Time `json:"expire_at,omitzero"`
}

const wireVersion = 1

// Marshal encodes e into its wire form.
func Marshal(e *CacheEntry) ([]byte, error) {
	b, err := json.Marshal(envelope{
		Version:        wireVersion,
		Key:            e.Key,
		Payload:        e.Payload,
		CreatedAt:      e.CreatedAt,
		LastAccessedAt: e.LastAccessedAt,
		ExpireAt:       e.ExpireAt,
	})
	if err != nil {
		return nil, fmt.Errorf("entry: marshal %s: %w", e.Key, err)
	}
	return b, nil
}

// Unmarshal decodes the wire form back into a CacheEntry. Any decode
// failure means the remote object is corrupt.
func Unmarshal(b []byte) (*CacheEntry, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("entry: unmarshal: %w", err)
	}
	if env.Version != wireVersion {
		return nil, fmt.Errorf("entry: unsupported wire version %d", env.Version)
	}
	return &CacheEntry{
		Key:            env.Key,
		Payload:        env.Payload,
		CreatedAt:      env.CreatedAt,
		LastAccessedAt: env.LastAccessedAt,
		ExpireAt:       env.ExpireAt,
	}, nil
}
