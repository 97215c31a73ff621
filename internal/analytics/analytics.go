// Package analytics provides pure graph analysis over an already-built
// graph context: community detection, betweenness centrality and shortest
// paths. All functions are side-effect free and deterministic for a fixed
// context.
package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	yourbasic "github.com/yourbasic/graph"

	"github.com/fraudsight/graph-engine/internal/graph"
)

// Analytics provides graph analysis over request-scoped graph contexts.
type Analytics struct {
	logger *slog.Logger
}

// Community is one detected cluster. Every node of the context appears in
// exactly one community; cluster ids are assigned by discovery order
// starting at 0.
type Community struct {
	ClusterID int      `json:"cluster_id"`
	NodeIDs   []string `json:"node_ids"`
}

// CentralityResult is one node's betweenness score with its 1-based rank.
type CentralityResult struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// ShortestPathResult holds an unweighted shortest path. An unreachable
// target is a normal result with an empty path and length -1, not an error.
type ShortestPathResult struct {
	Path   []string `json:"path"`
	Length int      `json:"length"`
}

// NewAnalytics creates a new analytics instance.
func NewAnalytics(logger *slog.Logger) *Analytics {
	return &Analytics{logger: logger}
}

// projection is the undirected simple projection of a graph context.
// Nodes are indexed in ascending id order so that every tie-break in the
// algorithms below is reproducible.
type projection struct {
	ids    []string
	index  map[string]int
	adj    [][]int
	weight map[[2]int]float64
	degree []float64
	m      float64
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func project(gctx *graph.Context) *projection {
	ids := gctx.NodeIDs()
	sort.Strings(ids)

	p := &projection{
		ids:    ids,
		index:  make(map[string]int, len(ids)),
		adj:    make([][]int, len(ids)),
		weight: make(map[[2]int]float64),
		degree: make([]float64, len(ids)),
	}
	for i, id := range ids {
		p.index[id] = i
	}

	neighborSets := make([]map[int]bool, len(ids))
	for i := range neighborSets {
		neighborSets[i] = make(map[int]bool)
	}

	for _, edge := range gctx.Edges() {
		u := p.index[edge.SourceID]
		v := p.index[edge.TargetID]
		if u == v {
			continue
		}
		neighborSets[u][v] = true
		neighborSets[v][u] = true

		// Parallel edges contribute weight individually.
		p.weight[pairKey(u, v)]++
		p.degree[u]++
		p.degree[v]++
		p.m++
	}

	for i, set := range neighborSets {
		neighbors := make([]int, 0, len(set))
		for n := range set {
			neighbors = append(neighbors, n)
		}
		sort.Ints(neighbors)
		p.adj[i] = neighbors
	}

	return p
}

// DetectCommunities partitions the context's nodes by greedy modularity
// maximization. Merge candidates are evaluated in ascending community-id
// order and only merges with a strictly positive modularity gain are taken,
// so re-running on an unchanged context yields an identical partition.
func (a *Analytics) DetectCommunities(gctx *graph.Context) ([]Community, error) {
	if err := gctx.Validate(); err != nil {
		return nil, fmt.Errorf("malformed graph context: %w", err)
	}

	startTime := time.Now()
	p := project(gctx)
	n := len(p.ids)
	if n == 0 {
		return []Community{}, nil
	}

	// Each node starts in its own community; communities keep the index of
	// their lowest member as id so the scan order stays fixed.
	members := make([][]int, n)
	commDegree := make([]float64, n)
	active := make([]bool, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
		commDegree[i] = p.degree[i]
		active[i] = true
	}

	between := make(map[[2]int]float64, len(p.weight))
	for key, w := range p.weight {
		between[key] = w
	}

	const epsilon = 1e-12
	if p.m > 0 {
		for {
			bestGain := 0.0
			bestA, bestB := -1, -1

			for key, w := range between {
				ca, cb := key[0], key[1]
				if !active[ca] || !active[cb] || w == 0 {
					continue
				}
				gain := w/p.m - commDegree[ca]*commDegree[cb]/(2*p.m*p.m)
				if gain <= epsilon {
					continue
				}
				// Total order on (gain, pair) keeps the pick independent
				// of map iteration order.
				better := bestA < 0 ||
					gain > bestGain+epsilon ||
					(gain > bestGain-epsilon && (ca < bestA || (ca == bestA && cb < bestB)))
				if better {
					bestGain = gain
					bestA, bestB = ca, cb
				}
			}

			if bestA < 0 {
				break
			}

			a.merge(bestA, bestB, members, commDegree, active, between)
		}
	}

	communities := a.collect(p, members, active)

	a.logger.Debug("Community detection completed",
		"nodes", n,
		"communities", len(communities),
		"duration_ms", time.Since(startTime).Milliseconds())

	return communities, nil
}

// merge folds community b into community a and rewires inter-community
// weights.
func (a *Analytics) merge(ca, cb int, members [][]int, commDegree []float64, active []bool, between map[[2]int]float64) {
	members[ca] = append(members[ca], members[cb]...)
	members[cb] = nil
	commDegree[ca] += commDegree[cb]
	commDegree[cb] = 0
	active[cb] = false

	delete(between, pairKey(ca, cb))
	for key, w := range between {
		var other int
		switch {
		case key[0] == cb:
			other = key[1]
		case key[1] == cb:
			other = key[0]
		default:
			continue
		}
		delete(between, key)
		if other != ca {
			between[pairKey(ca, other)] += w
		}
	}
}

// collect renumbers surviving communities by first appearance in ascending
// node-id order.
func (a *Analytics) collect(p *projection, members [][]int, active []bool) []Community {
	clusterOf := make([]int, len(p.ids))
	for i := range clusterOf {
		clusterOf[i] = -1
	}
	for comm := range members {
		if !active[comm] {
			continue
		}
		for _, node := range members[comm] {
			clusterOf[node] = comm
		}
	}

	next := 0
	renumber := make(map[int]int)
	grouped := make(map[int][]string)
	order := make([]int, 0)
	for node, comm := range clusterOf {
		clusterID, seen := renumber[comm]
		if !seen {
			clusterID = next
			renumber[comm] = clusterID
			order = append(order, clusterID)
			next++
		}
		grouped[clusterID] = append(grouped[clusterID], p.ids[node])
	}

	communities := make([]Community, 0, len(order))
	for _, clusterID := range order {
		communities = append(communities, Community{
			ClusterID: clusterID,
			NodeIDs:   grouped[clusterID],
		})
	}
	return communities
}

// Centrality computes betweenness centrality (Brandes) over the undirected
// projection. Results are sorted by descending score; ranks are 1-based
// with ties broken by ascending node id. O(V*E); callers should offload
// large graphs to a background worker.
func (a *Analytics) Centrality(gctx *graph.Context) ([]CentralityResult, error) {
	if err := gctx.Validate(); err != nil {
		return nil, fmt.Errorf("malformed graph context: %w", err)
	}

	startTime := time.Now()
	p := project(gctx)
	n := len(p.ids)

	scores := make([]float64, n)
	for source := 0; source < n; source++ {
		// Single-source shortest paths with path counting.
		stack := make([]int, 0, n)
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		sigma[source] = 1
		dist[source] = 0

		queue := []int{source}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range p.adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// Dependency accumulation in reverse discovery order.
		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				scores[w] += delta[w]
			}
		}
	}

	results := make([]CentralityResult, n)
	for i := 0; i < n; i++ {
		results[i] = CentralityResult{
			NodeID: p.ids[i],
			// Each unordered pair is counted from both endpoints.
			Score: scores[i] / 2,
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].NodeID < results[j].NodeID
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	a.logger.Debug("Centrality calculation completed",
		"nodes", n,
		"duration_ms", time.Since(startTime).Milliseconds())

	return results, nil
}

// ShortestPath finds an unweighted shortest path between two nodes of the
// context. Missing endpoints or disconnected components yield the normal
// not-found result rather than an error.
func (a *Analytics) ShortestPath(gctx *graph.Context, sourceID, targetID string) (ShortestPathResult, error) {
	notFound := ShortestPathResult{Path: []string{}, Length: -1}

	if err := gctx.Validate(); err != nil {
		return notFound, fmt.Errorf("malformed graph context: %w", err)
	}

	p := project(gctx)
	source, sourceOK := p.index[sourceID]
	target, targetOK := p.index[targetID]
	if !sourceOK || !targetOK {
		return notFound, nil
	}
	if sourceID == targetID {
		return ShortestPathResult{Path: []string{sourceID}, Length: 0}, nil
	}

	g := yourbasic.New(len(p.ids))
	for key := range p.weight {
		g.AddBothCost(key[0], key[1], 1)
	}

	path, dist := yourbasic.ShortestPath(g, source, target)
	if dist < 0 {
		return notFound, nil
	}

	ids := make([]string, len(path))
	for i, idx := range path {
		ids[i] = p.ids[idx]
	}

	return ShortestPathResult{Path: ids, Length: int(dist)}, nil
}
