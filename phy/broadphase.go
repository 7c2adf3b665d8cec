// Copyright © 2024 Galvanized Logic Inc.

// broadphase.go implements a dynamic AABB tree per broadphase layer,
// generating a candidate pair list the narrowphase filters further, with
// a speculative contact margin baked into each node's fattened bounds.
package phy

// BroadphaseLayer groups bodies that only interact within a layer-pair
// interaction matrix (e.g. "moving", "non-moving", "debris") so the tree
// per layer stays small and queries can skip whole layers outright.
type BroadphaseLayer uint8

// interactionMatrix reports whether two broadphase layers are ever
// allowed to generate pairs together; nil means "allow everything",
// the default of every layer interacting with every other.
type interactionMatrix struct {
	allow map[[2]BroadphaseLayer]bool
}

func newInteractionMatrix() *interactionMatrix {
	return &interactionMatrix{allow: map[[2]BroadphaseLayer]bool{}}
}

func (m *interactionMatrix) Enable(a, b BroadphaseLayer) {
	m.allow[[2]BroadphaseLayer{a, b}] = true
	m.allow[[2]BroadphaseLayer{b, a}] = true
}

func (m *interactionMatrix) Disable(a, b BroadphaseLayer) {
	m.allow[[2]BroadphaseLayer{a, b}] = false
	m.allow[[2]BroadphaseLayer{b, a}] = false
}

func (m *interactionMatrix) allows(a, b BroadphaseLayer) bool {
	v, ok := m.allow[[2]BroadphaseLayer{a, b}]
	if !ok {
		return true
	}
	return v
}

// bvhNode is one node of the dynamic AABB tree. Leaves store a body
// index; internal nodes store the union of their children's boxes.
type bvhNode struct {
	box         Abox
	left, right int // node indices, -1 for leaves.
	parent      int
	body        bodyIndex // valid only on leaves.
	height      int
}

const bvhNull = -1

// broadphaseTree is a dynamic AABB tree (Box2D/Bullet style: insert by
// walking down minimising surface-area cost, remove by splicing the
// sibling up) over one broadphase layer. No tree rotations are performed:
// insert and remove only refit boxes and heights up to the root, so the
// tree is not rebalanced.
type broadphaseTree struct {
	nodes []bvhNode
	root  int
	free  int // head of the free-list threaded through bvhNode.right
	// leafOf maps a body's dense index to its tree node, so remove/update
	// don't need a reverse scan.
	leafOf map[bodyIndex]int
}

func newBroadphaseTree() *broadphaseTree {
	return &broadphaseTree{root: bvhNull, free: bvhNull, leafOf: map[bodyIndex]int{}}
}

func (t *broadphaseTree) allocNode() int {
	if t.free != bvhNull {
		i := t.free
		t.free = t.nodes[i].right
		t.nodes[i] = bvhNode{left: bvhNull, right: bvhNull, parent: bvhNull}
		return i
	}
	t.nodes = append(t.nodes, bvhNode{left: bvhNull, right: bvhNull, parent: bvhNull})
	return len(t.nodes) - 1
}

func (t *broadphaseTree) freeNode(i int) {
	t.nodes[i].right = t.free
	t.free = i
}

// Insert adds body with the given (already margin-expanded) box.
func (t *broadphaseTree) Insert(body bodyIndex, box Abox) {
	leaf := t.allocNode()
	t.nodes[leaf].box = box
	t.nodes[leaf].left, t.nodes[leaf].right = bvhNull, bvhNull
	t.nodes[leaf].body = body
	t.nodes[leaf].height = 0
	t.leafOf[body] = leaf
	t.insertLeaf(leaf)
}

// Remove detaches body's leaf from the tree.
func (t *broadphaseTree) Remove(body bodyIndex) {
	leaf, ok := t.leafOf[body]
	if !ok {
		return
	}
	t.removeLeaf(leaf)
	t.freeNode(leaf)
	delete(t.leafOf, body)
}

// Update re-inserts body if its current leaf box no longer contains the
// fresh (tight, unexpanded) box: matching this package's Contains-based
// "only re-insert when necessary" discipline the tree relies on for
// amortised O(1) updates per step.
func (t *broadphaseTree) Update(body bodyIndex, tight Abox, margin float64) {
	leaf, ok := t.leafOf[body]
	if !ok {
		var expanded Abox = tight
		expanded.Expand(margin)
		t.Insert(body, expanded)
		return
	}
	if t.nodes[leaf].box.Contains(&tight) {
		return
	}
	t.removeLeaf(leaf)
	expanded := tight
	expanded.Expand(margin)
	t.nodes[leaf].box = expanded
	t.insertLeaf(leaf)
}

func (t *broadphaseTree) insertLeaf(leaf int) {
	if t.root == bvhNull {
		t.root = leaf
		t.nodes[leaf].parent = bvhNull
		return
	}
	leafBox := t.nodes[leaf].box
	index := t.root
	for t.nodes[index].left != bvhNull {
		left, right := t.nodes[index].left, t.nodes[index].right
		area := t.nodes[index].box.SurfaceArea()
		var combined Abox
		combined.Union(&t.nodes[index].box, &leafBox)
		combinedArea := combined.SurfaceArea()
		cost := 2 * combinedArea
		inheritCost := 2 * (combinedArea - area)

		costLeft := t.childCost(left, &leafBox) + inheritCost
		costRight := t.childCost(right, &leafBox) + inheritCost

		if cost < costLeft && cost < costRight {
			break
		}
		if costLeft < costRight {
			index = left
		} else {
			index = right
		}
	}
	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocNode()
	t.nodes[newParent].parent = oldParent
	var combined Abox
	combined.Union(&leafBox, &t.nodes[sibling].box)
	t.nodes[newParent].box = combined
	t.nodes[newParent].height = t.nodes[sibling].height + 1

	if oldParent != bvhNull {
		if t.nodes[oldParent].left == sibling {
			t.nodes[oldParent].left = newParent
		} else {
			t.nodes[oldParent].right = newParent
		}
		t.nodes[newParent].left, t.nodes[newParent].right = sibling, leaf
		t.nodes[sibling].parent, t.nodes[leaf].parent = newParent, newParent
	} else {
		t.nodes[newParent].left, t.nodes[newParent].right = sibling, leaf
		t.nodes[sibling].parent, t.nodes[leaf].parent = newParent, newParent
		t.root = newParent
	}
	t.fixUpwards(t.nodes[leaf].parent)
}

func (t *broadphaseTree) childCost(child int, leafBox *Abox) float64 {
	if t.nodes[child].left == bvhNull {
		var combined Abox
		combined.Union(leafBox, &t.nodes[child].box)
		return combined.SurfaceArea()
	}
	var combined Abox
	combined.Union(leafBox, &t.nodes[child].box)
	return combined.SurfaceArea() - t.nodes[child].box.SurfaceArea()
}

func (t *broadphaseTree) fixUpwards(index int) {
	for index != bvhNull {
		left, right := t.nodes[index].left, t.nodes[index].right
		t.nodes[index].height = 1 + maxInt(t.nodes[left].height, t.nodes[right].height)
		var box Abox
		box.Union(&t.nodes[left].box, &t.nodes[right].box)
		t.nodes[index].box = box
		index = t.nodes[index].parent
	}
}

func (t *broadphaseTree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = bvhNull
		return
	}
	parent := t.nodes[leaf].parent
	grandparent := t.nodes[parent].parent
	var sibling int
	if t.nodes[parent].left == leaf {
		sibling = t.nodes[parent].right
	} else {
		sibling = t.nodes[parent].left
	}
	if grandparent != bvhNull {
		if t.nodes[grandparent].left == parent {
			t.nodes[grandparent].left = sibling
		} else {
			t.nodes[grandparent].right = sibling
		}
		t.nodes[sibling].parent = grandparent
		t.freeNode(parent)
		t.fixUpwards(grandparent)
	} else {
		t.root = sibling
		t.nodes[sibling].parent = bvhNull
		t.freeNode(parent)
	}
}

// QueryPairs walks the tree against itself (standard stack-based dynamic
// tree self-query) appending every overlapping leaf pair to out.
func (t *broadphaseTree) QueryPairs(out [][2]bodyIndex) [][2]bodyIndex {
	if t.root == bvhNull {
		return out
	}
	var walk func(a, b int)
	walk = func(a, b int) {
		if !t.nodes[a].box.Overlaps(&t.nodes[b].box) {
			return
		}
		aLeaf, bLeaf := t.nodes[a].left == bvhNull, t.nodes[b].left == bvhNull
		switch {
		case aLeaf && bLeaf:
			if a != b {
				bi, bj := t.nodes[a].body, t.nodes[b].body
				if bi < bj {
					out = append(out, [2]bodyIndex{bi, bj})
				} else if bi > bj {
					out = append(out, [2]bodyIndex{bj, bi})
				}
			}
		case aLeaf:
			walk(a, t.nodes[b].left)
			walk(a, t.nodes[b].right)
		case bLeaf:
			walk(t.nodes[a].left, b)
			walk(t.nodes[a].right, b)
		default:
			walk(t.nodes[a].left, t.nodes[b].left)
			walk(t.nodes[a].left, t.nodes[b].right)
			walk(t.nodes[a].right, t.nodes[b].left)
			walk(t.nodes[a].right, t.nodes[b].right)
		}
	}
	// self-overlap pairs, deduplicated by only descending each internal
	// split once (standard dynamic-tree self-query recursion).
	var selfWalk func(n int)
	selfWalk = func(n int) {
		if t.nodes[n].left == bvhNull {
			return
		}
		l, r := t.nodes[n].left, t.nodes[n].right
		selfWalk(l)
		selfWalk(r)
		walk(l, r)
	}
	selfWalk(t.root)
	return out
}

// QueryBox appends every leaf body index whose node box overlaps box.
func (t *broadphaseTree) QueryBox(box *Abox, out []bodyIndex) []bodyIndex {
	if t.root == bvhNull {
		return out
	}
	stack := []int{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !t.nodes[n].box.Overlaps(box) {
			continue
		}
		if t.nodes[n].left == bvhNull {
			out = append(out, t.nodes[n].body)
			continue
		}
		stack = append(stack, t.nodes[n].left, t.nodes[n].right)
	}
	return out
}

// Broadphase owns one dynamic AABB tree per layer plus the interaction
// matrix filtering which layer pairs are ever considered.
type Broadphase struct {
	trees   map[BroadphaseLayer]*broadphaseTree
	matrix  *interactionMatrix
	margin  float64 // speculative contact margin added to every inserted box.
}

// NewBroadphase creates an empty broadphase with the given speculative
// margin and an interaction matrix that allows every layer pair
// until told otherwise.
func NewBroadphase(margin float64) *Broadphase {
	return &Broadphase{trees: map[BroadphaseLayer]*broadphaseTree{}, matrix: newInteractionMatrix(), margin: margin}
}

func (bp *Broadphase) treeFor(layer BroadphaseLayer) *broadphaseTree {
	t, ok := bp.trees[layer]
	if !ok {
		t = newBroadphaseTree()
		bp.trees[layer] = t
	}
	return t
}

// EnableLayerPair / DisableLayerPair expose the interaction matrix.
func (bp *Broadphase) EnableLayerPair(a, b BroadphaseLayer)  { bp.matrix.Enable(a, b) }
func (bp *Broadphase) DisableLayerPair(a, b BroadphaseLayer) { bp.matrix.Disable(a, b) }

// Add inserts a body's current (tight) AABB, expanded by the broadphase
// margin, into its layer's tree.
func (bp *Broadphase) Add(index bodyIndex, layer BroadphaseLayer, tight Abox) {
	expanded := tight
	expanded.Expand(bp.margin)
	bp.treeFor(layer).Insert(index, expanded)
}

// Update refreshes a body's node if its tight box has outgrown the
// stored (margin-expanded) one.
func (bp *Broadphase) Update(index bodyIndex, layer BroadphaseLayer, tight Abox) {
	bp.treeFor(layer).Update(index, tight, bp.margin)
}

// Remove detaches a body from its layer's tree.
func (bp *Broadphase) Remove(index bodyIndex, layer BroadphaseLayer) {
	bp.treeFor(layer).Remove(index)
}

// BroadPair is a candidate body-index pair the broadphase considers
// close enough to deserve a narrowphase test.
type BroadPair struct {
	A, B bodyIndex
}

// FindPairs walks every layer pair the interaction matrix allows and
// returns the union of candidate index pairs, deduplicated (A<B).
func (bp *Broadphase) FindPairs() []BroadPair {
	var pairs []BroadPair
	layers := make([]BroadphaseLayer, 0, len(bp.trees))
	for l := range bp.trees {
		layers = append(layers, l)
	}
	for i, a := range layers {
		if raw := bp.treeFor(a).QueryPairs(nil); raw != nil {
			for _, p := range raw {
				pairs = append(pairs, BroadPair{p[0], p[1]})
			}
		}
		for j := i + 1; j < len(layers); j++ {
			b := layers[j]
			if !bp.matrix.allows(a, b) {
				continue
			}
			pairs = append(pairs, bp.crossPairs(a, b)...)
		}
	}
	return pairs
}

func (bp *Broadphase) crossPairs(a, b BroadphaseLayer) []BroadPair {
	ta, tb := bp.treeFor(a), bp.treeFor(b)
	if ta.root == bvhNull || tb.root == bvhNull {
		return nil
	}
	var out []BroadPair
	var walk func(na, nb int)
	walk = func(na, nb int) {
		if !ta.nodes[na].box.Overlaps(&tb.nodes[nb].box) {
			return
		}
		aLeaf := ta.nodes[na].left == bvhNull
		bLeaf := tb.nodes[nb].left == bvhNull
		switch {
		case aLeaf && bLeaf:
			bi, bj := ta.nodes[na].body, tb.nodes[nb].body
			if bi < bj {
				out = append(out, BroadPair{bi, bj})
			} else {
				out = append(out, BroadPair{bj, bi})
			}
		case aLeaf:
			walk(na, tb.nodes[nb].left)
			walk(na, tb.nodes[nb].right)
		case bLeaf:
			walk(ta.nodes[na].left, nb)
			walk(ta.nodes[na].right, nb)
		default:
			walk(ta.nodes[na].left, tb.nodes[nb].left)
			walk(ta.nodes[na].left, tb.nodes[nb].right)
			walk(ta.nodes[na].right, tb.nodes[nb].left)
			walk(ta.nodes[na].right, tb.nodes[nb].right)
		}
	}
	walk(ta.root, tb.root)
	return out
}

// QueryBox returns every body index across all layers whose broadphase
// node overlaps box, used by CastRay/CollideShape before narrowphase
// confirmation.
func (bp *Broadphase) QueryBox(box *Abox) []bodyIndex {
	var out []bodyIndex
	for _, t := range bp.trees {
		out = t.QueryBox(box, out)
	}
	return out
}
