// Copyright © 2024 Galvanized Logic Inc.

// island.go groups interacting non-sleeping dynamic bodies into
// simulation islands via union-find, so the solver can process
// independent groups without cross-island false dependencies and so
// sleeping decisions are made per-island rather than per-body.
package phy

type unionFind struct {
	parent []bodyIndex
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]bodyIndex, n)}
	for i := range uf.parent {
		uf.parent[i] = bodyIndex(i)
	}
	return uf
}

func (uf *unionFind) find(x bodyIndex) bodyIndex {
	for uf.parent[x] != x {
		// path halving.
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y bodyIndex) {
	rx, ry := uf.find(x), uf.find(y)
	if rx != ry {
		uf.parent[ry] = rx
	}
}

// Island is a connected group of non-sleeping dynamic bodies (plus any
// static/kinematic bodies they touch, as pinned non-propagating
// endpoints) that the solver processes together.
type Island struct {
	Bodies      []bodyIndex
	staticTouch []bodyIndex
}

// buildIslands unions every dynamic body touched by a broadphase pair or
// a user constraint, then groups the result into islands. Static and
// kinematic bodies never union two dynamic islands together: touching
// one only pins it as a non-propagating endpoint, never a bridge between
// two otherwise-independent islands.
func buildIslands(bodies []*RigidBody, pairs []BroadPair, constraintPairs [][2]bodyIndex) []Island {
	uf := newUnionFind(len(bodies))
	dynamic := func(i bodyIndex) bool {
		return int(i) < len(bodies) && bodies[i] != nil && bodies[i].IsDynamic() && !bodies[i].IsSleeping()
	}
	for _, p := range pairs {
		if dynamic(p.A) && dynamic(p.B) {
			uf.union(p.A, p.B)
		}
	}
	for _, cp := range constraintPairs {
		if dynamic(cp[0]) && dynamic(cp[1]) {
			uf.union(cp[0], cp[1])
		}
	}

	byRoot := map[bodyIndex]int{}
	var islands []Island
	for i := range bodies {
		if !dynamic(bodyIndex(i)) {
			continue
		}
		root := uf.find(bodyIndex(i))
		idx, ok := byRoot[root]
		if !ok {
			idx = len(islands)
			islands = append(islands, Island{})
			byRoot[root] = idx
		}
		islands[idx].Bodies = append(islands[idx].Bodies, bodyIndex(i))
	}

	// attach static/kinematic endpoints touched by any pair so the solver
	// can read their (fixed) velocity without a second lookup table.
	touchSet := make([]map[bodyIndex]bool, len(islands))
	attach := func(dynIdx, otherIdx bodyIndex) {
		if dynamic(dynIdx) && !dynamic(otherIdx) {
			root := uf.find(dynIdx)
			idx := byRoot[root]
			if touchSet[idx] == nil {
				touchSet[idx] = map[bodyIndex]bool{}
			}
			if !touchSet[idx][otherIdx] {
				touchSet[idx][otherIdx] = true
				islands[idx].staticTouch = append(islands[idx].staticTouch, otherIdx)
			}
		}
	}
	for _, p := range pairs {
		attach(p.A, p.B)
		attach(p.B, p.A)
	}
	for _, cp := range constraintPairs {
		attach(cp[0], cp[1])
		attach(cp[1], cp[0])
	}
	return islands
}
