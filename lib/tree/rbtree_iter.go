package tree

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Inorder traversal to implement the DFS.
func (tree *rbTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	size := atomic.LoadInt64(&tree.count)
	aux := tree.root
	if size <= 0 || aux == nil {
		return
	}

	stack := make([]*rbNode[K, V], 0, size>>1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size = int64(len(stack)); size > 0; size = int64(len(stack)) {
		if aux = stack[size-1]; !action(idx, aux.color, aux.key, aux.val) {
			return
		}
		idx++
		stack = stack[:size-1]
		if aux.right != nil {
			for aux = aux.right; aux != nil; aux = aux.left {
				stack = append(stack, aux)
			}
		}
	}
}

// ForEach visits every stored key in ascending order together with the
// caller's context. The visitor receives the address of the stored value,
// so it may update the value in place, but must not insert into or remove
// from the tree.
func ForEach[K any, V any, C any](tree RBTree[K, V], ctx C, visitor func(key K, val *V, ctx C)) {
	t := mustRBTree[K, V](tree)
	for aux := t.root.minimum(); aux != nil; aux = aux.succ() {
		visitor(aux.key, &aux.val, ctx)
	}
}

func (tree *rbTree[K, V]) Keys() []K {
	keys := make([]K, 0, tree.Len())
	tree.Foreach(func(_ int64, _ RBColor, key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func (tree *rbTree[K, V]) Values() []V {
	vals := make([]V, 0, tree.Len())
	tree.Foreach(func(_ int64, _ RBColor, _ K, val V) bool {
		vals = append(vals, val)
		return true
	})
	return vals
}

// ToString formats the tree as {{k1 : v1}, {k2 : v2}} in ascending
// key order. An empty tree is {}.
func (tree *rbTree[K, V]) ToString(keyFmt func(K) string, valFmt func(V) string) string {
	if keyFmt == nil {
		keyFmt = sprint[K]
	}
	if valFmt == nil {
		valFmt = sprint[V]
	}

	builder := strings.Builder{}
	builder.Grow(int(tree.Len())*tree.strBufSize + 32)
	_, _ = builder.WriteString("{")
	tree.Foreach(func(idx int64, _ RBColor, key K, val V) bool {
		if idx > 0 {
			_, _ = builder.WriteString(", ")
		}
		_, _ = builder.WriteString("{")
		_, _ = builder.WriteString(keyFmt(key))
		_, _ = builder.WriteString(" : ")
		_, _ = builder.WriteString(valFmt(val))
		_, _ = builder.WriteString("}")
		return true
	})
	_, _ = builder.WriteString("}")
	return builder.String()
}

func (tree *rbTree[K, V]) String() string {
	return tree.ToString(nil, nil)
}

func sprint[T any](v T) string {
	return fmt.Sprint(v)
}

func mustRBTree[K any, V any](tree RBTree[K, V]) *rbTree[K, V] {
	t, ok := tree.(*rbTree[K, V])
	if !ok || t == nil {
		// precondition violation
		panic( /* debug assertion */ "[rbtree] nil or foreign tree")
	}
	return t
}
