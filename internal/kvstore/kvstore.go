// Package kvstore abstracts the durable counter store: a flat string
// key-value space with per-call atomicity and nothing more. The ledger and
// the queue journal sit on top of it.
package kvstore

import "context"

// Store is the external key-value collaborator. Get returns ok == false for
// an absent key; an error means the store itself could not be reached.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
