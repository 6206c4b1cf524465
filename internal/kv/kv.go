// Package kv provides the durable key/value storage the console uses to remember
// per-operator selections across reloads.
package kv

import (
	"context"
	"errors"
)

// Keys used by the console.
const (
	// KeySelectedTenant holds the id of the tenant the operator last selected.
	KeySelectedTenant = "agentId"
	// KeyLegacySelectedBusiness is the key older console builds wrote the selection to.
	KeyLegacySelectedBusiness = "selectedBusinessId"
)

// ErrEmptyKey is returned for blank keys.
var ErrEmptyKey = errors.New("kv: empty key")

// Store is synchronous get/set/remove storage. Get reports whether the key existed.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Namespace returns a view of s where every key is prefixed with ns.
func Namespace(s Store, ns string) Store {
	if ns == "" {
		return s
	}
	return &namespaced{inner: s, prefix: ns + ":"}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return n.inner.Remove(ctx, n.prefix+key)
}

// Pinger is implemented by stores backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}
