package kv

import (
	"errors"
	"fmt"
	randv2 "math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xcoll/xlog"
)

func genStrKeys(n int) []string {
	return lo.Map(lo.Range(n), func(i int, _ int) string {
		return fmt.Sprintf("key-%06d", i)
	})
}

func TestThreadSafeSortedMap_SimpleCRUD(t *testing.T) {
	keys := genStrKeys(10000)
	vals := make([]int, 0, len(keys))
	m := make(map[string]int, len(keys))
	_m := NewThreadSafeSortedMap[string, int](
		WithThreadSafeMapCloseableItemCheck[string, int](),
	)
	for i, key := range keys {
		m[key] = i
		vals = append(vals, i)
	}
	require.NoError(t, _m.Replace(m))
	require.Equal(t, int64(len(keys)), _m.Len())

	// The keys were generated in ascending order.
	require.Equal(t, keys, _m.ListKeys())
	require.Equal(t, vals, _m.ListValues())

	i := 1001
	res, exists := _m.Get(keys[i])
	require.True(t, exists)
	require.Equal(t, i, res)

	res, err := _m.Delete(keys[i])
	require.NoError(t, err)
	require.Equal(t, i, res)
	_, err = _m.Delete(keys[i])
	require.ErrorIs(t, err, ErrKeyNotFound)
	_, exists = _m.Get(keys[i])
	require.False(t, exists)

	require.NoError(t, _m.AddOrUpdate(keys[i], i))
	require.Equal(t, keys, _m.ListKeys())
	require.Equal(t, vals, _m.ListValues())

	require.NoError(t, _m.AddOrUpdate(keys[i], -1))
	res, exists = _m.Get(keys[i])
	require.True(t, exists)
	require.Equal(t, -1, res)

	require.NoError(t, _m.Purge())
	require.Equal(t, int64(0), _m.Len())
	require.Empty(t, _m.ListKeys())
	require.Empty(t, _m.ListValues())
	_, exists = _m.Get(keys[0])
	require.False(t, exists)
	_, err = _m.Delete(keys[0])
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.NoError(t, _m.Purge())

	require.NoError(t, _m.AddOrUpdate("a", 1))
	require.Equal(t, []string{"a"}, _m.ListKeys())
}

func TestThreadSafeSortedMap_Desc(t *testing.T) {
	m := NewThreadSafeSortedMap[int, string](WithThreadSafeMapDesc[int, string]())
	for _, key := range lo.Shuffle(lo.Range(5)) {
		require.NoError(t, m.AddOrUpdate(key, strconv.Itoa(key)))
	}
	require.Equal(t, []int{4, 3, 2, 1, 0}, m.ListKeys())
	require.Equal(t, []string{"3", "1"}, m.ListValues(1, 3, 7))

	require.NoError(t, m.Replace(map[int]string{10: "10", 20: "20"}))
	require.Equal(t, []int{20, 10}, m.ListKeys())
}

func TestThreadSafeSortedMap_ListFilters(t *testing.T) {
	m := NewThreadSafeSortedMap[int, int]()
	for i := 0; i < 20; i++ {
		require.NoError(t, m.AddOrUpdate(i, i*i))
	}
	even := func(key int) bool { return key%2 == 0 }
	small := func(key int) bool { return key < 5 }

	require.Equal(t, lo.Range(20), m.ListKeys())
	require.Equal(t, lo.Range(20), m.ListKeys(nil))
	require.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, m.ListKeys(even))
	// Any filter matching keeps the key.
	require.Equal(t, []int{0, 1, 2, 3, 4, 6, 8, 10, 12, 14, 16, 18}, m.ListKeys(even, small, nil))

	require.Equal(t, []int{4, 9, 361}, m.ListValues(19, 3, 2, 100))
}

type closableItem struct {
	id     int
	closed *atomic.Int32
	err    error
}

func (c *closableItem) Close() error {
	c.closed.Add(1)
	return c.err
}

func TestThreadSafeSortedMap_CloseableItems(t *testing.T) {
	closed := &atomic.Int32{}
	m := NewThreadSafeSortedMap[int, *closableItem](
		WithThreadSafeMapCloseableItemCheck[int, *closableItem](),
	)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddOrUpdate(i, &closableItem{id: i, closed: closed}))
	}
	require.NoError(t, m.AddOrUpdate(10, nil))

	// Deleted items are handed back without closing.
	item, err := m.Delete(0)
	require.NoError(t, err)
	require.Equal(t, 0, item.id)
	require.Equal(t, int32(0), closed.Load())

	require.NoError(t, m.Replace(map[int]*closableItem{
		1: {id: 100, closed: closed},
	}))
	require.Equal(t, int32(9), closed.Load())

	errClose := errors.New("close failed")
	require.NoError(t, m.AddOrUpdate(2, &closableItem{id: 2, closed: closed, err: errClose}))
	err = m.Purge()
	require.ErrorIs(t, err, errClose)
	require.Equal(t, int32(11), closed.Load())
	require.Equal(t, int64(0), m.Len())
}

func TestThreadSafeSortedMap_NonCloseableItems(t *testing.T) {
	m := NewThreadSafeSortedMap[int, string](
		WithThreadSafeMapCloseableItemCheck[int, string](),
	)
	require.NoError(t, m.AddOrUpdate(1, "a"))
	require.NoError(t, m.Purge())

	closed := &atomic.Int32{}
	anyMap := NewThreadSafeSortedMap[int, any](
		WithThreadSafeMapCloseableItemCheck[int, any](),
	)
	require.NoError(t, anyMap.AddOrUpdate(1, "a"))
	require.NoError(t, anyMap.AddOrUpdate(2, &closableItem{closed: closed}))
	require.NoError(t, anyMap.AddOrUpdate(3, nil))
	require.NoError(t, anyMap.Purge())
	require.Equal(t, int32(1), closed.Load())
}

func TestThreadSafeSortedMap_Logger(t *testing.T) {
	require.Panics(t, func() {
		NewThreadSafeSortedMap[int, int](WithThreadSafeMapLogger[int, int](nil))
	})

	logger := xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.LogLevelError),
		xlog.WithXLoggerWriter(xlog.StdErr),
	)
	closed := &atomic.Int32{}
	m := NewThreadSafeSortedMap[string, *closableItem](
		WithThreadSafeMapLogger[string, *closableItem](logger),
		WithThreadSafeMapCloseableItemCheck[string, *closableItem](),
	)
	require.NoError(t, m.AddOrUpdate("bad", &closableItem{closed: closed, err: errors.New("boom")}))
	err := m.Purge()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "boom"))
}

func TestThreadSafeSortedMap_DataRace(t *testing.T) {
	keys := genStrKeys(4096)
	m := NewThreadSafeSortedMap[string, string]()

	channels := make([]chan string, 4)
	for i := 0; i < len(channels); i++ {
		channels[i] = make(chan string)
	}
	wg := sync.WaitGroup{}
	wg.Add(len(channels) + 1)
	for i := 0; i < len(channels); i++ {
		go func(ch <-chan string) {
			defer wg.Done()
			for k := range ch {
				require.NoError(t, m.AddOrUpdate(k, k))
			}
		}(channels[i])
	}
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = m.Get(keys[randv2.IntN(len(keys))])
			_ = m.ListKeys(func(key string) bool {
				return strings.HasSuffix(key, "7")
			})
		}
	}()
	for i, k := range keys {
		channels[i%len(channels)] <- k
	}
	for i := 0; i < len(channels); i++ {
		close(channels[i])
	}
	close(stop)
	wg.Wait()

	require.Equal(t, int64(len(keys)), m.Len())
	require.Equal(t, keys, m.ListKeys())
	for _, k := range keys {
		v, ok := m.Get(k)
		require.True(t, ok)
		require.Equal(t, k, v)
	}
}

func BenchmarkThreadSafeSortedMapReadWrite(b *testing.B) {
	value := []byte(`abc`)
	for i := 0; i <= 10; i += 5 {
		b.Run(fmt.Sprintf("ThreadSafeSortedMap frac_%d", i), func(bb *testing.B) {
			readFrac := float32(i) / 10.0
			tsm := NewThreadSafeSortedMap[int, []byte]()
			bb.ResetTimer()
			count := atomic.Int32{}
			bb.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if randv2.Float32() < readFrac {
						v, exists := tsm.Get(randv2.Int())
						if exists && v != nil {
							count.Add(1)
						}
					} else {
						_ = tsm.AddOrUpdate(randv2.Int(), value)
					}
				}
			})
		})
	}
}
