package storage

// Storage is a string key-value area with a fixed lifetime. Durable storage
// survives restarts; session storage lives for one process run.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}
