package kv

import "github.com/benz9527/xcoll/lib/infra"

type SafeStoreKeyFilterFunc[K infra.OrderedKey] func(key K) bool

// ThreadSafeStorer keeps the items in key order. Listing the keys or
// the values always returns them in the key order.
type ThreadSafeStorer[K infra.OrderedKey, V any] interface {
	Purge() error
	AddOrUpdate(key K, obj V) error
	Replace(items map[K]V) error
	Delete(key K) (V, error)
	Get(key K) (item V, exists bool)
	Len() int64
	ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K
	ListValues(keys ...K) (items []V)
}
