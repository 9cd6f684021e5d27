package stitch

import (
	"panstitch/internal/transform"
)

type pairKey struct{ a, b int }

// Graph is the undirected pair graph over image indices with a sparse
// table of pairwise match infos. Edges are stored in both directions:
// the reverse direction carries the inverse homography and the same
// inlier/confidence scalars.
type Graph struct {
	adj   [][]int
	pairs map[pairKey]transform.MatchInfo
}

// NewGraph creates a graph over n image indices.
func NewGraph(n int) *Graph {
	return &Graph{
		adj:   make([][]int, n),
		pairs: make(map[pairKey]transform.MatchInfo, n),
	}
}

// AddEdge records info as the match for (a, b), where info.Homo maps
// image-b coordinates into image-a coordinates, and keeps the inverse
// edge in sync.
func (g *Graph) AddEdge(a, b int, info transform.MatchInfo) error {
	inv, err := info.Homo.Inverse()
	if err != nil {
		return err
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	g.pairs[pairKey{a, b}] = info
	g.pairs[pairKey{b, a}] = transform.MatchInfo{
		Homo:       inv,
		Inliers:    info.Inliers,
		Confidence: info.Confidence,
	}
	return nil
}

// Has reports whether the pair (a, b) carries a match.
func (g *Graph) Has(a, b int) bool {
	_, ok := g.pairs[pairKey{a, b}]
	return ok
}

// Match returns the match info for the ordered pair (a, b).
func (g *Graph) Match(a, b int) (transform.MatchInfo, bool) {
	info, ok := g.pairs[pairKey{a, b}]
	return info, ok
}

// Neighbors returns the adjacency list of image i.
func (g *Graph) Neighbors(i int) []int {
	return g.adj[i]
}
