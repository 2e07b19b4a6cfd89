// Package clientstore is the durable key-value medium a client process keeps its
// session mirror in. Several handles (one per process or tab) may share one medium;
// a write through one handle is announced to every other handle subscribed to the
// written key, and never to the writer itself.
package clientstore

import "context"

type Change struct {
	Key     string
	Deleted bool
}

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Update writes all entries at once. A nil value deletes the key.
	Update(ctx context.Context, values map[string]*string) error
	// UpdateIf writes values like Update, but only while key still holds expected. It
	// reports whether the write happened.
	UpdateIf(ctx context.Context, key, expected string, values map[string]*string) (bool, error)
	// Subscribe delivers changes made by other handles until ctx is done, then closes
	// the channel.
	Subscribe(ctx context.Context, key string) (<-chan Change, error)
}

func Value(s string) *string {
	return &s
}
