package tree

import (
	"sync/atomic"

	"github.com/benz9527/xcoll/lib/infra"
	"github.com/benz9527/xcoll/xlog"
)

const defaultStrBufSize = 16

type rbTree[K any, V any] struct {
	root       *rbNode[K, V]
	count      int64
	cmp        infra.OrderedKeyComparator[K]
	destructor func(key K, val V) error
	strBufSize int
	logger     xlog.XLogger
}

func (tree *rbTree[K, V]) Len() int64 {
	return atomic.LoadInt64(&tree.count)
}

func (tree *rbTree[K, V]) IsEmpty() bool {
	return tree.Len() == 0
}

func (tree *rbTree[K, V]) Root() RBNode[K, V] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// (Conclusion) If a node X has exactly one child, it must be a red child,
//   because if it were black, its NIL descendants would sit at a different
//   black depth than X's NIL child, violating p4.
// So the shortest path nodes are black nodes. Otherwise,
// the path must contain red node.
// The longest path nodes' number is 2 * shortest path nodes' number.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[K, V]) leftRotate(x *rbNode[K, V]) {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y := x.parent, x.right
	dir := x.Direction()
	x.right, y.left = y.left, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)
}

/*
			 |                         |
			 X                         S
			/ \     rightRotate(S)    / \
	       L   S    <============    X   R
			  / \                   / \
			Sc   Sd               Sc   Sd
*/
func (tree *rbTree[K, V]) rightRotate(x *rbNode[K, V]) {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y := x.parent, x.left
	dir := x.Direction()
	x.left, y.right = y.right, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)
}

// rotate moves x down to the dir side of its child.
func (tree *rbTree[K, V]) rotate(x *rbNode[K, V], dir RBDirection) {
	switch dir {
	case Left:
		tree.leftRotate(x)
	case Right:
		tree.rightRotate(x)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown rotate direction")
	}
}

// replaceChild links y into the dir slot of p, or makes it the root.
func (tree *rbTree[K, V]) replaceChild(p *rbNode[K, V], dir RBDirection, y *rbNode[K, V]) {
	switch dir {
	case Root:
		tree.root = y
	case Left:
		p.left = y
	case Right:
		p.right = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to replace")
	}
	if y != nil {
		y.parent = p
	}
}

// transplant replaces the subtree rooted at u with the subtree rooted at v.
// The u's own links are left untouched.
func (tree *rbTree[K, V]) transplant(u, v *rbNode[K, V]) {
	tree.replaceChild(u.parent, u.Direction(), v)
}

func (tree *rbTree[K, V]) Insert(key K, val V) bool {
	return tree.insert(key, val, true)
}

func (tree *rbTree[K, V]) InsertIfAbsent(key K, val V) bool {
	return tree.insert(key, val, false)
}

// i1: Empty rbtree, the new node becomes the root and is painted to black
// by the rebalance.
// i2: Equal key found, replace the value in place (if enabled) without
// changing the tree shape.
// i3: Link a new red node as the child of the last visited node.
func (tree *rbTree[K, V]) insert(key K, val V, replace bool) bool {
	var (
		x   = tree.root
		y   *rbNode[K, V]
		dir = Root
	)
	for x != nil {
		y = x
		res := tree.cmp(key, x.key)
		if /* i2 */ res == 0 {
			if replace {
				x.val = val
			}
			return false
		} else /* less */ if res < 0 {
			x, dir = x.left, Left
		} else /* greater */ {
			x, dir = x.right, Right
		}
	}

	z := &rbNode[K, V]{
		key:   key,
		val:   val,
		color: Red,
	}
	tree.replaceChild(y, dir, z) // i1 or i3
	atomic.AddInt64(&tree.count, 1)
	tree.insertRebalance(z)
	return true
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

im1: Current node X's parent P is black (or X is root), hold p3 and p4.

im2: X is root and repainted into black at last.

im3: If both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Recursive to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P. Rotate P to opposite direction.
After rotation may be still red-violation. Here must enter im5 to fix.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: Handle im4 scenario, current node is the same direction as parent.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K, V]) insertRebalance(x *rbNode[K, V]) {
	// The root is black, so a red parent always has a parent.
	for /* im1 */ x.parent.isRed() {
		p, gp := x.parent, x.grandpa()
		if u := p.sibling(); /* im3 */ u.isRed() {
			p.color, u.color, gp.color = Black, Black, Red
			x = gp
			continue
		}

		if dir := x.Direction(); /* im4 */ dir != p.Direction() {
			tree.rotate(p, -dir)
			x, p = p, x
		}

		/* im5 */
		p.color, gp.color = Black, Red
		tree.rotate(gp, -p.Direction())
		break
	}
	/* im2 */
	tree.root.color = Black
}

func (tree *rbTree[K, V]) Search(x RBNode[K, V], fn func(RBNode[K, V]) int64) RBNode[K, V] {
	if x == nil {
		return nil
	}

	for aux := x; aux != nil; {
		res := fn(aux)
		if res == 0 {
			return aux
		} else if res > 0 {
			aux = aux.Right()
		} else {
			aux = aux.Left()
		}
	}
	return nil
}

func (tree *rbTree[K, V]) search(key K) *rbNode[K, V] {
	for aux := tree.root; aux != nil; {
		res := tree.cmp(key, aux.key)
		if res == 0 {
			return aux
		} else if res > 0 {
			aux = aux.right
		} else {
			aux = aux.left
		}
	}
	return nil
}

func (tree *rbTree[K, V]) Get(key K) (val V, ok bool) {
	if x := tree.search(key); x != nil {
		return x.val, true
	}
	return val, false
}

func (tree *rbTree[K, V]) GetRef(key K) *V {
	if x := tree.search(key); x != nil {
		return &x.val
	}
	return nil
}

func (tree *rbTree[K, V]) Contains(key K) bool {
	return tree.search(key) != nil
}

func (tree *rbTree[K, V]) Min() (RBNode[K, V], bool) {
	if _min := tree.root.minimum(); _min != nil {
		return _min, true
	}
	return nil, false
}

func (tree *rbTree[K, V]) Max() (RBNode[K, V], bool) {
	if _max := tree.root.maximum(); _max != nil {
		return _max, true
	}
	return nil, false
}

/*
r1: Current node Z has at most one child C (C may be NIL).
Transplant C into Z's position. C and Z's parent are the rebalance anchor.

	  |                 |
	  Z    remove(Z)    C
	   \   ========>
	    C

r2: Current node Z has left and right child.
Find Z's succ S (the minimum of the right subtree, which has no left child).
Transplant S's right child into S's position, then S takes over Z's
position, left child and color. The node identities are kept, only the
links are changed.

	  |                    |
	  Z                    S
	 / \                  / \
	L  ..   remove(Z)    L  ..
		|   =========>       |
		P                    P
	   / \                  / \
	  S  ..               Sr  ..
	   \
	   Sr

If the removed (r1) or moved (r2) node was black, p4 is broken along the
anchor path (black-violation) and we have to rebalance.
*/
func (tree *rbTree[K, V]) removeNode(z *rbNode[K, V]) {
	var (
		x, xParent *rbNode[K, V]
		origColor  = z.color
	)

	if /* r1 */ z.left == nil {
		x, xParent = z.right, z.parent
		tree.transplant(z, z.right)
	} else /* r1 */ if z.right == nil {
		x, xParent = z.left, z.parent
		tree.transplant(z, z.left)
	} else /* r2 */ {
		y := z.right.minimum()
		origColor = y.color
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			tree.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		tree.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	z.detach()
	atomic.AddInt64(&tree.count, -1)

	if origColor == Black {
		tree.removeRebalance(x, xParent)
	}
}

func (tree *rbTree[K, V]) Remove(key K) bool {
	z := tree.search(key)
	if z == nil {
		return false
	}
	tree.removeNode(z)
	return true
}

func (tree *rbTree[K, V]) RemoveMin() (RBNode[K, V], bool) {
	_min := tree.root.minimum()
	if _min == nil {
		return nil, false
	}
	tree.removeNode(_min)
	return _min, true
}

/*
X carries an extra black. X may be NIL, so its parent P is tracked
by the caller instead of reading X's parent link.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

Sc is the same direction to X and it X's sibling's child node.
Sd is the opposite direction to X and it X's sibling's child node.

rm1: Current node X's sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
(1) repaint S into black, P into red.
(2) X is left node of P, left rotate P.
(3) X is right node of P, right rotate P.
X gets a black sibling, enter rm2 to rm5.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [D]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm2: Current node X's parent P is red, the sibling S, nephew node Sc and Sd
is black.
Repaint S into red. P becomes the new X, which is red and repainted into
black at last.

	  <P>             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm3: All of current node X's parent P, the sibling S, nephew node Sc and Sd
are black.
Unable to satisfy p3 and p4. We have to paint the S into red to satisfy
p4 locally. Then recursive to handle P.

	  [P]             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm4: Current node X's sibling S is black, nephew node Sc is red and Sd
is black. Ignore X's parent P's color (red or black is okay)
(1) If X is left node of P, right rotate S.
(2) If X is right node of P, left rotate S.
(3) Repaint S into red, Sc into black
Enter into rm5 to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm5: Current node X's sibling S is black and nephew node Sd is red.
Ignore X's parent P's color (red or black is okay)
(1) If X is left node of P, left rotate P.
(2) If X is right node of P, right rotate P.
(3) Swap P and S's color (red-violation)
(4) Repaint Sd into black.
The extra black is consumed, terminate.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 [Sc] <Sd>          [X] [Sc]           [X] [Sc]
*/
func (tree *rbTree[K, V]) removeRebalance(x, p *rbNode[K, V]) {
	for x != tree.root && x.isBlack() {
		// X is NIL and P has no left child means X is the left slot.
		dir := Right
		if x == p.left {
			dir = Left
		}

		s := p.child(-dir)
		if s == nil {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] remove violate, black node without sibling")
		}
		if /* rm1 */ s.isRed() {
			s.color, p.color = Black, Red
			tree.rotate(p, dir)
			s = p.child(-dir)
		}

		sc, sd := s.child(dir), s.child(-dir)
		if /* rm2, rm3 */ sc.isBlack() && sd.isBlack() {
			s.color = Red
			x, p = p, p.parent
			continue
		}

		if /* rm4 */ sd.isBlack() {
			sc.color, s.color = Black, Red
			tree.rotate(s, -dir)
			s = p.child(-dir)
			sd = s.child(-dir)
		}

		/* rm5 */
		s.color, p.color = p.color, Black
		sd.color = Black
		tree.rotate(p, dir)
		x = tree.root
	}
	if x != nil {
		x.color = Black
	}
}

type RBTreeOpt[K any, V any] func(*rbTree[K, V])

// WithRBTreeDesc reverses the order of the tree.
func WithRBTreeDesc[K any, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.cmp = infra.ReverseComparator[K](tree.cmp)
	}
}

// WithRBTreeDestructor registers the per-element destructor invoked
// during clear and on the duplicates dropped by join.
func WithRBTreeDestructor[K any, V any](fn func(key K, val V) error) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.destructor = fn
	}
}

// WithRBTreeStrBufSize is a per-element hint for ToString. It does not
// affect the output.
func WithRBTreeStrBufSize[K any, V any](size int) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		if size > 0 {
			tree.strBufSize = size
		}
	}
}

func WithRBTreeLogger[K any, V any](logger xlog.XLogger) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.logger = logger
	}
}

// NewRBTree creates an empty tree in the natural ascending order of K.
func NewRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) RBTree[K, V] {
	return newRBTree[K, V](infra.OrderedKeyCompare[K], opts...)
}

// NewRBTreeWithComparator creates an empty tree ordered by cmp.
// The cmp is mandatory.
func NewRBTreeWithComparator[K any, V any](cmp infra.OrderedKeyComparator[K], opts ...RBTreeOpt[K, V]) RBTree[K, V] {
	return newRBTree[K, V](cmp, opts...)
}

func newRBTree[K any, V any](cmp infra.OrderedKeyComparator[K], opts ...RBTreeOpt[K, V]) *rbTree[K, V] {
	if cmp == nil {
		panic( /* debug assertion */ "[rbtree] nil key comparator")
	}
	tree := &rbTree[K, V]{
		count:      0,
		cmp:        cmp,
		strBufSize: defaultStrBufSize,
	}

	for _, o := range opts {
		o(tree)
	}
	return tree
}
