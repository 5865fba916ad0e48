package storage

import (
	"github.com/patrickmn/go-cache"
)

// SessionStorage lives as long as the process. Entries never expire on their
// own; ending the process ends the session.
type SessionStorage struct {
	cache *cache.Cache
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *SessionStorage) Get(key string) (string, bool, error) {
	if x, found := s.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (s *SessionStorage) Set(key, value string) error {
	s.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (s *SessionStorage) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

// Reset ends the session, dropping every key.
func (s *SessionStorage) Reset() {
	s.cache.Flush()
}
