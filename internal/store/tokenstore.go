package store

import (
	"sync"
	"time"

	"github.com/LongHE173420/AutoEric/internal/model"
)

// TokenStore persists cached sessions keyed by normalized phone number.
// Access tokens live in one bucket (sealed when a passphrase is configured),
// refresh tokens and metadata in another. The mutex makes the global wipe
// exclusive with respect to every other access.
type TokenStore struct {
	mu     sync.RWMutex
	access Bucket
	meta   Bucket
	now    func() time.Time
}

type tokenMeta struct {
	SavedAt  int64  `json:"savedAt"`
	DeviceID string `json:"deviceId"`
}

// NewTokenStore builds a TokenStore over the given buckets.
func NewTokenStore(access, meta Bucket) *TokenStore {
	return &TokenStore{access: access, meta: meta, now: time.Now}
}

func accessKey(key string) string  { return "access:" + key }
func refreshKey(key string) string { return "refresh:" + key }
func metaKey(key string) string    { return "meta:" + key }

// Get returns the cached session for phone, or nil when either token is
// missing. Phone matching is format-insensitive.
func (s *TokenStore) Get(phone string) (*model.StoredTokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := model.NormalizePhone(phone)

	var access string
	ok, err := s.access.Get(accessKey(key), &access)
	if err != nil || !ok {
		return nil, err
	}
	var refresh string
	ok, err = s.meta.Get(refreshKey(key), &refresh)
	if err != nil || !ok {
		return nil, err
	}
	var meta tokenMeta
	if _, err := s.meta.Get(metaKey(key), &meta); err != nil {
		return nil, err
	}

	return &model.StoredTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		SavedAt:      meta.SavedAt,
		DeviceID:     meta.DeviceID,
	}, nil
}

// Set stores a complete token pair with savedAt/deviceId metadata. Callers
// must only invoke it when the server supplied both tokens.
func (s *TokenStore) Set(phone, accessToken, refreshToken, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.NormalizePhone(phone)
	if err := s.access.Set(accessKey(key), accessToken); err != nil {
		return err
	}
	if err := s.meta.Set(refreshKey(key), refreshToken); err != nil {
		return err
	}
	return s.meta.Set(metaKey(key), tokenMeta{
		SavedAt:  s.now().UnixMilli(),
		DeviceID: deviceID,
	})
}

// ClearAccount removes the cached session for one account.
func (s *TokenStore) ClearAccount(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.NormalizePhone(phone)
	if err := s.access.Delete(accessKey(key)); err != nil {
		return err
	}
	if err := s.meta.Delete(refreshKey(key)); err != nil {
		return err
	}
	return s.meta.Delete(metaKey(key))
}

// ClearAll wipes every cached session. Taken when a refresh token is found
// expired: the conservative reset of the whole cache.
func (s *TokenStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.access.Clear(); err != nil {
		return err
	}
	return s.meta.Clear()
}
