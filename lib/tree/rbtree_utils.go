package tree

import (
	"strconv"

	"github.com/benz9527/xcoll/lib/infra"
)

func isBlack[K any, V any](node RBNode[K, V]) bool {
	return node == nil || node.Color() == Black
}

func isRed[K any, V any](node RBNode[K, V]) bool {
	return node != nil && node.Color() == Red
}

func isRoot[K any, V any](node RBNode[K, V]) bool {
	return node != nil && node.Parent() == nil
}

func blackDepthTo[K any, V any](target, to RBNode[K, V]) int {
	depth := 0
	for aux := target; aux != to; aux = aux.Parent() {
		if isBlack[K, V](aux) {
			depth++
		}
	}
	return depth
}

// rbtree rule validation utilities.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// Inorder traversal to validate the rbtree properties.
func RedViolationValidate[K any, V any](tree RBTree[K, V]) error {
	aux := tree.Root()
	if aux == nil {
		return nil
	}
	if isRed[K, V](aux) {
		return infra.NewErrorStack("[rbtree] red root violation")
	}

	stack := make([]RBNode[K, V], 0, tree.Len()>>1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.Left() {
		stack = append(stack, aux)
	}

	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; isRed[K, V](aux) {
			if isRed[K, V](aux.Parent()) || isRed[K, V](aux.Left()) || isRed[K, V](aux.Right()) {
				return infra.NewErrorStack("[rbtree] red violation")
			}
		}

		stack = stack[:size-1]
		if aux.Right() != nil {
			for aux = aux.Right(); aux != nil; aux = aux.Left() {
				stack = append(stack, aux)
			}
		}
	}
	return nil
}

// BFS traversal to load all nodes owning a NIL child.
func bfsLeaves[K any, V any](tree RBTree[K, V]) []RBNode[K, V] {
	aux := tree.Root()
	if aux == nil {
		return nil
	}

	leaves := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	queue := make([]RBNode[K, V], 0, tree.Len()>>1+1)
	defer func() {
		clear(queue)
	}()
	queue = append(queue, aux)

	for len(queue) > 0 {
		aux = queue[0]
		l, r := aux.Left(), aux.Right()
		if /* nil leaves, keep one */ l == nil || r == nil {
			leaves = append(leaves, aux)
		}
		if l != nil {
			queue = append(queue, l)
		}
		if r != nil {
			queue = append(queue, r)
		}
		queue = queue[1:]
	}
	return leaves
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
	        /  \
	     <8>    [15]
	     / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            <16>

2-3-4 tree like:

	       <8> --- [13] --- <15>
	      /  \             /    \
	     /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each leaf node to root node black depth are equal.
*/
func BlackViolationValidate[K any, V any](tree RBTree[K, V]) error {
	leaves := bfsLeaves[K, V](tree)
	if leaves == nil {
		return nil
	}

	root := tree.Root()
	blackDepth := blackDepthTo[K, V](leaves[0], root.Parent())
	for i := 1; i < len(leaves); i++ {
		if blackDepthTo[K, V](leaves[i], root.Parent()) != blackDepth {
			return infra.NewErrorStack("[rbtree] black violation")
		}
	}
	return nil
}

// OrderViolationValidate checks the keys are strictly ascending in the
// tree order, so no duplicates are present either.
func OrderViolationValidate[K any, V any](tree RBTree[K, V]) (err error) {
	t := mustRBTree[K, V](tree)
	var prev K
	t.Foreach(func(idx int64, _ RBColor, key K, _ V) bool {
		if idx > 0 && t.cmp(prev, key) >= 0 {
			err = infra.NewErrorStack("[rbtree] order violation at index " + strconv.FormatInt(idx, 10))
			return false
		}
		prev = key
		return true
	})
	return err
}

// SizeViolationValidate checks the counter is equal to the number of
// reachable nodes and each child links back to its parent.
func SizeViolationValidate[K any, V any](tree RBTree[K, V]) error {
	aux := tree.Root()
	if aux == nil {
		if tree.Len() != 0 {
			return infra.NewErrorStack("[rbtree] size violation, empty root with non-zero size")
		}
		return nil
	}
	if !isRoot[K, V](aux) {
		return infra.NewErrorStack("[rbtree] root with parent")
	}

	count := int64(0)
	stack := []RBNode[K, V]{aux}
	for len(stack) > 0 {
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, child := range []RBNode[K, V]{aux.Left(), aux.Right()} {
			if child == nil {
				continue
			}
			if child.Parent() != aux {
				return infra.NewErrorStack("[rbtree] broken parent link")
			}
			stack = append(stack, child)
		}
	}
	if count != tree.Len() {
		return infra.NewErrorStack("[rbtree] size violation, " +
			strconv.FormatInt(count, 10) + " reachable nodes but size is " +
			strconv.FormatInt(tree.Len(), 10))
	}
	return nil
}
