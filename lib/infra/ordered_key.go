package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
// If future releases of Go add new predeclared unsigned integer types,
// this constraint will be modified to include them.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is a constraint that permits any integer type.
// If future releases of Go add new predeclared integer types,
// this constraint will be modified to include them.
type Integer interface {
	Signed | Unsigned
}

// Float is a constraint that permits any floating-point type.
// If future releases of Go add new predeclared floating-point types,
// this constraint will be modified to include them.
type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// OrderedKeyComparator
// Assume i is the new key.
//  1. i == j (i-j == 0, return 0)
//  2. i > j (i-j > 0, return 1), turn to right part.
//  3. i < j (i-j < 0, return -1), turn to left part.
//
// The order must be total and must not change while a key is held
// by a container.
type OrderedKeyComparator[K any] func(i, j K) int64

// OrderedKeyCompare is the natural ascending order of the OrderedKey.
// NaN is treated as less than any other float and equal to itself,
// so the order stays total.
func OrderedKeyCompare[K OrderedKey](i, j K) int64 {
	iNaN, jNaN := isNaN(i), isNaN(j)
	switch {
	case iNaN && jNaN:
		return 0
	case iNaN:
		return -1
	case jNaN:
		return 1
	case i == j:
		return 0
	case i < j:
		return -1
	}
	return 1
}

func isNaN[K OrderedKey](k K) bool {
	// Only NaN is not equal to itself.
	return k != k
}

// ReverseComparator flips the order of cmp. A nil cmp returns nil.
func ReverseComparator[K any](cmp OrderedKeyComparator[K]) OrderedKeyComparator[K] {
	if cmp == nil {
		return nil
	}
	return func(i, j K) int64 {
		return cmp(j, i)
	}
}
