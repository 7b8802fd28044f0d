// Package unionfind provides a disjoint-set structure over arbitrary
// comparable keys.
//
// Keys are renumbered densely on first sight; the forest itself is an
// arena of int parents with path compression and union by size.
package unionfind

// UnionFind is a disjoint-set forest keyed by K. The zero value is not
// usable; create one with New.
type UnionFind[K comparable] struct {
	index  map[K]int
	keys   []K
	parent []int
	size   []int
}

// New creates an empty UnionFind.
func New[K comparable]() *UnionFind[K] {
	return &UnionFind[K]{index: make(map[K]int)}
}

// id returns the dense index of k, allocating a singleton set if needed.
func (u *UnionFind[K]) id(k K) int {
	if i, ok := u.index[k]; ok {
		return i
	}
	i := len(u.keys)
	u.index[k] = i
	u.keys = append(u.keys, k)
	u.parent = append(u.parent, i)
	u.size = append(u.size, 1)
	return i
}

func (u *UnionFind[K]) root(i int) int {
	r := i
	for u.parent[r] != r {
		r = u.parent[r]
	}
	for u.parent[i] != r {
		u.parent[i], i = r, u.parent[i]
	}
	return r
}

// Add registers k as a singleton set if it is not already known.
func (u *UnionFind[K]) Add(k K) {
	u.id(k)
}

// Find returns the representative key of the set containing k.
func (u *UnionFind[K]) Find(k K) K {
	return u.keys[u.root(u.id(k))]
}

// Union merges the sets containing a and b and returns the new
// representative.
func (u *UnionFind[K]) Union(a, b K) K {
	ra, rb := u.root(u.id(a)), u.root(u.id(b))
	if ra == rb {
		return u.keys[ra]
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	return u.keys[ra]
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind[K]) Connected(a, b K) bool {
	return u.root(u.id(a)) == u.root(u.id(b))
}
