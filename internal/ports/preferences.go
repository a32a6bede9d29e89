package ports

import "context"

// PreferencesRepository is the on-device key-value store that holds every piece
// of persisted state: the serialized series set (current and legacy versions),
// the per-series chapter counters and the AniList access token.
//
// Each call is a single atomic read or read-modify-write against the backing
// store; PutMany applies all writes in one transaction so a library snapshot
// plus its counters never land half-written.
type PreferencesRepository interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// ListPrefix returns every key/value pair whose key starts with prefix.
	ListPrefix(ctx context.Context, prefix string) (map[string]string, error)
	Put(ctx context.Context, key, value string) error
	// PutMany upserts all pairs atomically.
	PutMany(ctx context.Context, pairs map[string]string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
