package kv

import (
	"errors"
	"io"
	"reflect"
	"sync"

	"github.com/samber/lo"

	"github.com/benz9527/xcoll/lib/infra"
	"github.com/benz9527/xcoll/lib/tree"
	"github.com/benz9527/xcoll/xlog"
)

var ErrKeyNotFound = errors.New("[kv] key not found")

// threadSafeSortedMap serializes all the accesses to a single red-black
// tree with one RW lock.
type threadSafeSortedMap[K infra.OrderedKey, V any] struct {
	lock           sync.RWMutex
	items          tree.RBTree[K, V]
	isDesc         bool
	isClosableItem bool
	logger         xlog.XLogger
}

func (t *threadSafeSortedMap[K, V]) newTree() tree.RBTree[K, V] {
	opts := make([]tree.RBTreeOpt[K, V], 0, 3)
	if t.isDesc {
		opts = append(opts, tree.WithRBTreeDesc[K, V]())
	}
	if t.isClosableItem {
		opts = append(opts, tree.WithRBTreeDestructor[K, V](closeItem[K, V]))
	}
	if t.logger != nil {
		opts = append(opts, tree.WithRBTreeLogger[K, V](t.logger))
	}
	return tree.NewRBTree[K, V](opts...)
}

func (t *threadSafeSortedMap[K, V]) AddOrUpdate(key K, obj V) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.items == nil {
		t.items = t.newTree()
	}
	t.items.Insert(key, obj)
	return nil
}

// Replace swaps the whole content. The items of the old content are
// released (closed if enabled).
func (t *threadSafeSortedMap[K, V]) Replace(items map[K]V) error {
	newItems := t.newTree()
	for key, item := range items {
		newItems.Insert(key, item)
	}

	t.lock.Lock()
	old := t.items
	t.items = newItems
	t.lock.Unlock()

	if old == nil {
		return nil
	}
	return old.Release()
}

func (t *threadSafeSortedMap[K, V]) Delete(key K) (item V, err error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.items == nil {
		return item, ErrKeyNotFound
	}
	item, exists := t.items.Get(key)
	if !exists {
		return item, ErrKeyNotFound
	}
	t.items.Remove(key)
	return item, nil
}

func (t *threadSafeSortedMap[K, V]) Get(key K) (item V, exists bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.items == nil {
		return item, false
	}
	return t.items.Get(key)
}

func (t *threadSafeSortedMap[K, V]) Len() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.items == nil {
		return 0
	}
	return t.items.Len()
}

func (t *threadSafeSortedMap[K, V]) ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K {
	realFilters := lo.Filter(filters, func(filter SafeStoreKeyFilterFunc[K], _ int) bool {
		return filter != nil
	})

	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.items == nil {
		return []K{}
	}
	keys := t.items.Keys()
	if len(realFilters) == 0 {
		return keys
	}
	return lo.Filter(keys, func(key K, _ int) bool {
		return lo.ContainsBy(realFilters, func(filter SafeStoreKeyFilterFunc[K]) bool {
			return filter(key)
		})
	})
}

// ListValues returns the values of the given keys in ascending key
// order, the absent keys are skipped. No keys means all the values.
func (t *threadSafeSortedMap[K, V]) ListValues(keys ...K) (items []V) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.items == nil {
		return []V{}
	}
	if len(keys) == 0 {
		return t.items.Values()
	}

	wanted := lo.SliceToMap(keys, func(key K) (K, struct{}) {
		return key, struct{}{}
	})
	items = make([]V, 0, len(wanted))
	t.items.Foreach(func(_ int64, _ tree.RBColor, key K, val V) bool {
		if _, ok := wanted[key]; ok {
			items = append(items, val)
		}
		return true
	})
	return items
}

func (t *threadSafeSortedMap[K, V]) Purge() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.items == nil {
		return nil
	}
	err := t.items.Release()
	t.items = nil
	return err
}

func closeItem[K infra.OrderedKey, V any](_ K, item V) error {
	rv := reflect.ValueOf(item)
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return nil
		}
	default:
	}
	if c, ok := any(item).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type ThreadSafeMapOption[K infra.OrderedKey, V any] func(*threadSafeSortedMap[K, V]) error

// WithThreadSafeMapCloseableItemCheck closes the io.Closer items when
// they are purged or replaced.
func WithThreadSafeMapCloseableItemCheck[K infra.OrderedKey, V any]() ThreadSafeMapOption[K, V] {
	return func(m *threadSafeSortedMap[K, V]) error {
		typ := reflect.TypeOf((*V)(nil)).Elem()
		m.isClosableItem = typ.Implements(reflect.TypeOf((*io.Closer)(nil)).Elem()) ||
			/* checked item by item */ typ.Kind() == reflect.Interface
		return nil
	}
}

func WithThreadSafeMapDesc[K infra.OrderedKey, V any]() ThreadSafeMapOption[K, V] {
	return func(m *threadSafeSortedMap[K, V]) error {
		m.isDesc = true
		return nil
	}
}

func WithThreadSafeMapLogger[K infra.OrderedKey, V any](logger xlog.XLogger) ThreadSafeMapOption[K, V] {
	return func(m *threadSafeSortedMap[K, V]) error {
		if logger == nil {
			return infra.NewErrorStack("[kv] nil logger")
		}
		m.logger = logger
		return nil
	}
}

func NewThreadSafeSortedMap[K infra.OrderedKey, V any](opts ...ThreadSafeMapOption[K, V]) ThreadSafeStorer[K, V] {
	m := &threadSafeSortedMap[K, V]{}
	for _, o := range opts {
		if err := o(m); err != nil {
			panic(err)
		}
	}
	m.items = m.newTree()
	return m
}
