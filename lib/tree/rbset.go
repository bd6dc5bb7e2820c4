package tree

import (
	"strings"

	"github.com/benz9527/xcoll/lib/infra"
	"github.com/benz9527/xcoll/xlog"
)

type rbSet[T any] struct {
	tree *rbTree[T, struct{}]
}

func (set *rbSet[T]) Len() int64 {
	return set.tree.Len()
}

func (set *rbSet[T]) IsEmpty() bool {
	return set.tree.IsEmpty()
}

func (set *rbSet[T]) Insert(elem T) bool {
	return set.tree.InsertIfAbsent(elem, struct{}{})
}

func (set *rbSet[T]) Contains(elem T) bool {
	return set.tree.Contains(elem)
}

func (set *rbSet[T]) Remove(elem T) bool {
	return set.tree.Remove(elem)
}

func (set *rbSet[T]) Min() (elem T, ok bool) {
	if _min := set.tree.root.minimum(); _min != nil {
		return _min.key, true
	}
	return elem, false
}

func (set *rbSet[T]) Max() (elem T, ok bool) {
	if _max := set.tree.root.maximum(); _max != nil {
		return _max.key, true
	}
	return elem, false
}

func (set *rbSet[T]) Foreach(action func(idx int64, elem T) bool) {
	set.tree.Foreach(func(idx int64, _ RBColor, key T, _ struct{}) bool {
		return action(idx, key)
	})
}

func (set *rbSet[T]) Elems() []T {
	return set.tree.Keys()
}

// ToString formats the set as {e1, e2, e3} in ascending order.
func (set *rbSet[T]) ToString(elemFmt func(T) string) string {
	if elemFmt == nil {
		elemFmt = sprint[T]
	}

	builder := strings.Builder{}
	builder.Grow(int(set.Len())*set.tree.strBufSize + 16)
	_, _ = builder.WriteString("{")
	set.Foreach(func(idx int64, elem T) bool {
		if idx > 0 {
			_, _ = builder.WriteString(", ")
		}
		_, _ = builder.WriteString(elemFmt(elem))
		return true
	})
	_, _ = builder.WriteString("}")
	return builder.String()
}

func (set *rbSet[T]) String() string {
	return set.ToString(nil)
}

func (set *rbSet[T]) Join(src RBSet[T]) int64 {
	if src == nil {
		return 0
	}
	s, ok := src.(*rbSet[T])
	if !ok || s == nil {
		// precondition violation
		panic( /* debug assertion */ "[rbset] nil or foreign set")
	}
	if s == set || s.IsEmpty() {
		return 0
	}
	n, _ := set.tree.join(s.tree)
	return n
}

func (set *rbSet[T]) Clear() error {
	return set.tree.Clear()
}

func (set *rbSet[T]) Release() error {
	return set.tree.Release()
}

// ForEachElem visits every element in ascending order together with
// the caller's context.
func ForEachElem[T any, C any](set RBSet[T], ctx C, visitor func(elem T, ctx C)) {
	s, ok := set.(*rbSet[T])
	if !ok || s == nil {
		// precondition violation
		panic( /* debug assertion */ "[rbset] nil or foreign set")
	}
	for aux := s.tree.root.minimum(); aux != nil; aux = aux.succ() {
		visitor(aux.key, ctx)
	}
}

type RBSetOpt[T any] func(*rbTree[T, struct{}])

func WithRBSetDesc[T any]() RBSetOpt[T] {
	return RBSetOpt[T](WithRBTreeDesc[T, struct{}]())
}

func WithRBSetDestructor[T any](fn func(elem T) error) RBSetOpt[T] {
	return func(tree *rbTree[T, struct{}]) {
		if fn == nil {
			tree.destructor = nil
			return
		}
		tree.destructor = func(key T, _ struct{}) error {
			return fn(key)
		}
	}
}

func WithRBSetStrBufSize[T any](size int) RBSetOpt[T] {
	return RBSetOpt[T](WithRBTreeStrBufSize[T, struct{}](size))
}

func WithRBSetLogger[T any](logger xlog.XLogger) RBSetOpt[T] {
	return RBSetOpt[T](WithRBTreeLogger[T, struct{}](logger))
}

func NewRBSet[T infra.OrderedKey](opts ...RBSetOpt[T]) RBSet[T] {
	return NewRBSetWithComparator[T](infra.OrderedKeyCompare[T], opts...)
}

func NewRBSetWithComparator[T any](cmp infra.OrderedKeyComparator[T], opts ...RBSetOpt[T]) RBSet[T] {
	treeOpts := make([]RBTreeOpt[T, struct{}], 0, len(opts))
	for _, o := range opts {
		treeOpts = append(treeOpts, RBTreeOpt[T, struct{}](o))
	}
	return &rbSet[T]{
		tree: newRBTree[T, struct{}](cmp, treeOpts...),
	}
}
