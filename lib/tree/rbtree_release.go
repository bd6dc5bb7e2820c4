package tree

import (
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xcoll/lib/infra"
)

// Postorder traversal, the children are visited before their parent.
// The action must not change the tree links.
func (tree *rbTree[K, V]) postorder(action func(node *rbNode[K, V])) {
	var (
		aux  = tree.root
		last *rbNode[K, V]
	)
	stack := make([]*rbNode[K, V], 0, 32)
	defer func() {
		clear(stack)
	}()

	for aux != nil || len(stack) > 0 {
		if aux != nil {
			stack = append(stack, aux)
			aux = aux.left
			continue
		}
		top := stack[len(stack)-1]
		if top.right != nil && top.right != last {
			aux = top.right
			continue
		}
		action(top)
		last = top
		stack = stack[:len(stack)-1]
	}
}

func (tree *rbTree[K, V]) dispose(node *rbNode[K, V]) error {
	if node.moved || tree.destructor == nil {
		return nil
	}
	err := tree.destructor(node.key, node.val)
	if err != nil && tree.logger != nil {
		tree.logger.Error(err, "[rbtree] element destructor failed",
			zap.Any("key", node.key),
		)
	}
	return err
}

// Clear releases the nodes in postorder. The children are unlinked
// before the parent is disposed. The stack depth is bounded by the
// tree height.
func (tree *rbTree[K, V]) Clear() (err error) {
	aux := tree.root
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
	if aux == nil {
		return nil
	}

	stack := make([]*rbNode[K, V], 0, 32)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, aux)

	for len(stack) > 0 {
		aux = stack[len(stack)-1]
		if l := aux.left; l != nil {
			aux.left = nil
			stack = append(stack, l)
			continue
		}
		if r := aux.right; r != nil {
			aux.right = nil
			stack = append(stack, r)
			continue
		}
		stack = stack[:len(stack)-1]
		err = multierr.Append(err, tree.dispose(aux))
		aux.parent = nil
		var (
			k K
			v V
		)
		aux.key, aux.val = k, v
	}
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[rbtree] clear")
	}
	return nil
}

func (tree *rbTree[K, V]) Release() error {
	return tree.Clear()
}

// Join moves all elements of src into dest and then clears src.
// The elements of src colliding with the keys in dest are the
// duplicates, dest keeps its own values, and the duplicates are
// disposed by the src destructor during the src clear. The moved
// elements are never disposed by src.
// It returns the number of elements added to dest.
func Join[K any, V any](dest, src RBTree[K, V]) int64 {
	n, _ := JoinE[K, V](dest, src)
	return n
}

// JoinE is Join but also returns the errors of the duplicates disposal.
func JoinE[K any, V any](dest, src RBTree[K, V]) (int64, error) {
	if dest == nil || src == nil {
		return 0, nil
	}
	d, s := mustRBTree[K, V](dest), mustRBTree[K, V](src)
	if d == s || s.IsEmpty() {
		return 0, nil
	}
	return d.join(s)
}

func (tree *rbTree[K, V]) join(src *rbTree[K, V]) (int64, error) {
	before := tree.Len()
	src.postorder(func(node *rbNode[K, V]) {
		if tree.InsertIfAbsent(node.key, node.val) {
			node.moved = true
		}
	})
	added, dups := tree.Len()-before, src.Len()-(tree.Len()-before)
	err := src.Clear()

	if tree.logger != nil {
		tree.logger.Debug("[rbtree] join",
			zap.Int64("added", added),
			zap.Int64("duplicates", dups),
			zap.Int64("size", tree.Len()),
		)
	}
	return added, err
}
