// Package graph holds the pairwise image graph this package consumes:
// views, undirected motion edges with a designated source/destination,
// and per-edge inlier correspondences. Construction of this graph (from
// pairwise matching) is external; this package only represents it and
// answers the two queries the orchestration needs: a view's edge list
// and findMotion(other).
package graph

// Correspondence is one inlier pair surviving pairwise robust matching:
// (src_feature_index, dst_feature_index) in the edge's own src/dst views.
type Correspondence struct {
	SrcFeat int
	DstFeat int
}

// View is an image node identified by an opaque ID, with a known feature
// count (feature indices are dense integers in [0, TotalFeatures)) and a
// list of outgoing motion edges (indices into Graph.edges).
type View struct {
	ID            string
	TotalFeatures int
	edgeIdx       []int
}

// Edges returns the indices (into the owning Graph's edge arena) of this
// view's incident motion edges, in the order they were added.
func (v *View) Edges() []int {
	return v.edgeIdx
}

// Edge is an undirected pairwise relation between two views with a
// designated source and destination. The designation is intrinsic to the
// edge (set at construction), never chosen by a caller traversing it.
type Edge struct {
	Src, Dst string // view IDs
	Inliers  []Correspondence
	Score    float64
}

// Other returns the view ID at the opposite end of the edge from v.
// Precondition: v is one of e.Src, e.Dst.
func (e *Edge) Other(v string) string {
	if v == e.Src {
		return e.Dst
	}
	return e.Src
}

// Graph is an arena of views and an arena of edges. Reverse lookups
// (findMotion) use a small per-view map from neighbor view ID to edge
// index; with the low per-view degree expected of this graph a linear
// scan would also be acceptable (spec.md §9), but the map keeps
// findMotion O(1) without complicating the data model.
type Graph struct {
	views map[string]*View
	edges []*Edge
	// neighborEdge[viewID][otherViewID] = index into edges.
	neighborEdge map[string]map[string]int
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		views:        make(map[string]*View),
		neighborEdge: make(map[string]map[string]int),
	}
}

// AddView registers a view with its feature count. Re-adding the same ID
// is a no-op if totalFeatures matches, otherwise it panics: the feature
// count of a view must not change once observations reference it.
func (g *Graph) AddView(id string, totalFeatures int) *View {
	if existing, ok := g.views[id]; ok {
		if existing.TotalFeatures != totalFeatures {
			panic("graph: AddView called twice for " + id + " with different TotalFeatures")
		}
		return existing
	}
	v := &View{ID: id, TotalFeatures: totalFeatures}
	g.views[id] = v
	g.neighborEdge[id] = make(map[string]int)
	return v
}

// View returns the view with the given ID, or nil if absent.
func (g *Graph) View(id string) *View {
	return g.views[id]
}

// AddEdge adds an undirected motion edge between existing views src and
// dst, recording the src/dst designation and the inlier list. Both views
// must already exist (via AddView).
func (g *Graph) AddEdge(src, dst string, inliers []Correspondence, score float64) *Edge {
	sv, ok := g.views[src]
	if !ok {
		panic("graph: AddEdge references unknown view " + src)
	}
	dv, ok := g.views[dst]
	if !ok {
		panic("graph: AddEdge references unknown view " + dst)
	}

	e := &Edge{Src: src, Dst: dst, Inliers: inliers, Score: score}
	idx := len(g.edges)
	g.edges = append(g.edges, e)

	sv.edgeIdx = append(sv.edgeIdx, idx)
	dv.edgeIdx = append(dv.edgeIdx, idx)
	g.neighborEdge[src][dst] = idx
	g.neighborEdge[dst][src] = idx

	return e
}

// Edge returns the edge at the given arena index.
func (g *Graph) Edge(idx int) *Edge {
	return g.edges[idx]
}

// FindMotion returns the edge between a and b, or nil if no such edge
// exists.
func (g *Graph) FindMotion(a, b string) *Edge {
	nbrs, ok := g.neighborEdge[a]
	if !ok {
		return nil
	}
	idx, ok := nbrs[b]
	if !ok {
		return nil
	}
	return g.edges[idx]
}
