package godb

import "sync"

// WaitGraphNode is the wait-for graph's per-transaction node: next is whom
// this transaction is waiting for, prev is who waits on this transaction.
// Edges are maintained symmetrically: b is in a.next iff a is in b.prev.
type WaitGraphNode struct {
	tid   TransactionID
	owner *WaitGraph
	mu    sync.Mutex
	next  map[TransactionID]struct{}
	prev  map[TransactionID]struct{}
}

// WaitGraph is the directed wait-for graph spanning every live transaction.
// It is implemented as a map of mutable nodes keyed by TransactionID, never
// as cyclic owning references, so that nodes can be looked up, created, and
// torn down independently of graph traversal.
type WaitGraph struct {
	mu    sync.Mutex
	nodes map[TransactionID]*WaitGraphNode
}

// NewWaitGraph returns an empty wait-for graph.
func NewWaitGraph() *WaitGraph {
	return &WaitGraph{nodes: make(map[TransactionID]*WaitGraphNode)}
}

// GetNode returns the node for tid, creating it if this is the first time
// tid has appeared in the graph. Idempotent.
func (g *WaitGraph) GetNode(tid TransactionID) *WaitGraphNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[tid]
	if !ok {
		n = &WaitGraphNode{
			tid:   tid,
			owner: g,
			next:  make(map[TransactionID]struct{}),
			prev:  make(map[TransactionID]struct{}),
		}
		g.nodes[tid] = n
	}
	return n
}

// node looks up an existing node without creating one; used by AddWait and
// ReleaseThis to reach the foreign side of an edge.
func (g *WaitGraph) node(tid TransactionID) *WaitGraphNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes[tid]
}

// AddWait records that self is now waiting for other: inserts the edge
// self->other and its inverse other.prev += self. The self->other half is
// recorded under self's own lock; the other.prev write is made under the
// foreign node's lock, which is safe because prev is only ever read while
// holding that same node's lock (see ReleaseThis) — see the open question in
// §9 about this convention.
func (g *WaitGraph) AddWait(self TransactionID, other TransactionID) {
	if self == other {
		n := g.GetNode(self)
		n.mu.Lock()
		n.next[self] = struct{}{}
		n.prev[self] = struct{}{}
		n.mu.Unlock()
		return
	}
	selfNode := g.GetNode(self)
	otherNode := g.GetNode(other)

	selfNode.mu.Lock()
	selfNode.next[other] = struct{}{}
	selfNode.mu.Unlock()

	otherNode.mu.Lock()
	otherNode.prev[self] = struct{}{}
	otherNode.mu.Unlock()
}

// AddWaits is the fold of AddWait over a set of transactions self is now
// waiting for.
func (g *WaitGraph) AddWaits(self TransactionID, others []TransactionID) {
	for _, other := range others {
		g.AddWait(self, other)
	}
}

// ReleaseThis removes tid's node from every neighbor's prev/next sets and
// clears its own, as if tid had never waited on or been waited upon by
// anyone. Called when tid is granted the lock it was waiting for, or when
// tid aborts.
func (g *WaitGraph) ReleaseThis(tid TransactionID) {
	n := g.node(tid)
	if n == nil {
		return
	}

	n.mu.Lock()
	succ := make([]TransactionID, 0, len(n.next))
	for s := range n.next {
		succ = append(succ, s)
	}
	pred := make([]TransactionID, 0, len(n.prev))
	for p := range n.prev {
		pred = append(pred, p)
	}
	n.next = make(map[TransactionID]struct{})
	n.prev = make(map[TransactionID]struct{})
	n.mu.Unlock()

	for _, s := range succ {
		if s == tid {
			continue
		}
		sn := g.node(s)
		if sn == nil {
			continue
		}
		sn.mu.Lock()
		delete(sn.prev, tid)
		sn.mu.Unlock()
	}
	for _, p := range pred {
		if p == tid {
			continue
		}
		pn := g.node(p)
		if pn == nil {
			continue
		}
		pn.mu.Lock()
		delete(pn.next, tid)
		pn.mu.Unlock()
	}
}

// CheckCycle reports whether self is reachable from itself by following
// next edges, i.e. whether self participates in a wait-for cycle. It is
// called by PageLock while still holding the mutex that just recorded the
// edge triggering this check, so that edge is guaranteed visible.
//
// Traversal holds no lock across the DFS: each visited node's mutex is taken
// only while its next set is copied, so the graph can change while the
// search runs. A concurrent AddWait on an unrelated edge can make this
// invocation miss a cycle that another thread is simultaneously completing,
// but CheckCycle runs again on every blocking wait, so a missed edge this
// round is caught on the next attempt. A reported cycle, by contrast, is
// never a false positive: it reflects edges that were actually present at
// some instant during the DFS.
func (n *WaitGraphNode) CheckCycle() bool {
	path := make(map[TransactionID]bool)
	checked := make(map[TransactionID]bool)

	var dfs func(cur *WaitGraphNode) bool
	dfs = func(cur *WaitGraphNode) bool {
		if checked[cur.tid] {
			return false
		}
		path[cur.tid] = true

		cur.mu.Lock()
		succ := make([]TransactionID, 0, len(cur.next))
		for s := range cur.next {
			succ = append(succ, s)
		}
		cur.mu.Unlock()

		for _, s := range succ {
			if s == n.tid {
				return true
			}
			if path[s] {
				continue
			}
			succNode := n.graphNode(s)
			if succNode == nil {
				continue
			}
			if dfs(succNode) {
				return true
			}
		}

		path[cur.tid] = false
		checked[cur.tid] = true
		return false
	}

	return dfs(n)
}

// graphNode resolves a successor TransactionID back to its node through the
// owning graph (n.owner, set by WaitGraph.GetNode), so CheckCycle can follow
// next edges. It returns nil for a tid with no node and never creates one.
func (n *WaitGraphNode) graphNode(tid TransactionID) *WaitGraphNode {
	if n.owner == nil {
		return nil
	}
	return n.owner.node(tid)
}
