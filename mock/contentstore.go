package mock

import "github.com/fwojciec/docchunk"

var _ docchunk.ContentStore = (*ContentStore)(nil)

// ContentStore is a mock implementation of docchunk.ContentStore.
type ContentStore struct {
	SaveFn   func(key string, content []byte) error
	LoadFn   func(key string) ([]byte, error)
	DeleteFn func(key string) error
}

func (s *ContentStore) Save(key string, content []byte) error {
	return s.SaveFn(key, content)
}

func (s *ContentStore) Load(key string) ([]byte, error) {
	return s.LoadFn(key)
}

func (s *ContentStore) Delete(key string) error {
	return s.DeleteFn(key)
}
