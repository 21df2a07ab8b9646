package domain

// KVStore is the minimal key-value contract the cache and quota tracker
// persist through. Implementations must be safe for concurrent use.
// Get returns ErrKeyNotFound for absent keys.
type KVStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}
