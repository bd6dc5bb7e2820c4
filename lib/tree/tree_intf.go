package tree

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=RBDirection
type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

type RBNode[K any, V any] interface {
	Key() K
	Val() V
	Color() RBColor
	Left() RBNode[K, V]
	Right() RBNode[K, V]
	Parent() RBNode[K, V]
}

// RBTree is an ordered key-value map backed by a red-black tree.
// It is not safe for concurrent use. Callers have to serialize the
// access by themselves (see kv.NewThreadSafeSortedMap) or shard the
// keys across independent trees.
type RBTree[K any, V any] interface {
	Len() int64
	IsEmpty() bool
	Root() RBNode[K, V]
	// Insert returns true if a new node was created. An existing key
	// gets its value replaced in place and the tree shape is untouched.
	Insert(key K, val V) bool
	// InsertIfAbsent never replaces the value of an existing key.
	InsertIfAbsent(key K, val V) bool
	Get(key K) (V, bool)
	// GetRef returns the address of the stored value, nil if absent.
	// The reference is valid until the key is removed or the tree cleared.
	GetRef(key K) *V
	Contains(key K) bool
	Search(x RBNode[K, V], fn func(RBNode[K, V]) int64) RBNode[K, V]
	Remove(key K) bool
	Min() (RBNode[K, V], bool)
	Max() (RBNode[K, V], bool)
	// RemoveMin returns the detached minimum node. Its payload now
	// belongs to the caller, the destructor is not invoked on it.
	RemoveMin() (RBNode[K, V], bool)
	Foreach(action func(idx int64, color RBColor, key K, val V) bool)
	Keys() []K
	Values() []V
	ToString(keyFmt func(K) string, valFmt func(V) string) string
	String() string
	// Clear removes all nodes and invokes the destructor, if any, on
	// each payload. All destructor errors are combined into one.
	Clear() error
	Release() error
}

// RBSet is an ordered set backed by the same red-black tree engine
// as RBTree, storing keys only.
type RBSet[T any] interface {
	Len() int64
	IsEmpty() bool
	// Insert returns false and leaves the set unchanged if an equal
	// element is present.
	Insert(elem T) bool
	Contains(elem T) bool
	Remove(elem T) bool
	Min() (T, bool)
	Max() (T, bool)
	Foreach(action func(idx int64, elem T) bool)
	Elems() []T
	ToString(elemFmt func(T) string) string
	String() string
	// Join moves all elements of src into the set and clears src.
	// It returns how many elements were actually added.
	Join(src RBSet[T]) int64
	Clear() error
	Release() error
}
