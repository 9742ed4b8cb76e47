package godb

import "testing"

func TestWaitGraphSelfCycle(t *testing.T) {
	g := NewWaitGraph()
	tid := NewTID()

	g.AddWait(tid, tid)
	if !g.GetNode(tid).CheckCycle() {
		t.Fatalf("expected self-wait to be reported as a cycle")
	}

	g.ReleaseThis(tid)
	if g.GetNode(tid).CheckCycle() {
		t.Fatalf("expected cycle to clear after ReleaseThis")
	}
}

func TestWaitGraphTwoNodeCycle(t *testing.T) {
	g := NewWaitGraph()
	t1 := NewTID()
	t2 := NewTID()

	g.AddWait(t1, t2)
	g.AddWait(t2, t1)

	if !g.GetNode(t1).CheckCycle() {
		t.Fatalf("expected t1 to observe the cycle")
	}
	if !g.GetNode(t2).CheckCycle() {
		t.Fatalf("expected t2 to observe the cycle")
	}

	g.ReleaseThis(t1)
	if g.GetNode(t1).CheckCycle() {
		t.Fatalf("expected t1 to be clear after its own release")
	}
	if g.GetNode(t2).CheckCycle() {
		t.Fatalf("expected t2 to be clear once t1 leaves the graph")
	}
}

func TestWaitGraphNoCycleWithoutEdges(t *testing.T) {
	g := NewWaitGraph()
	t1 := NewTID()
	t2 := NewTID()
	t3 := NewTID()

	g.AddWait(t1, t2)
	g.AddWait(t2, t3)

	if g.GetNode(t1).CheckCycle() {
		t.Fatalf("a chain without a closing edge is not a cycle")
	}

	g.AddWait(t3, t1)
	if !g.GetNode(t1).CheckCycle() {
		t.Fatalf("closing the chain should produce a cycle")
	}
}

func TestWaitGraphAddWaits(t *testing.T) {
	g := NewWaitGraph()
	self := NewTID()
	others := []TransactionID{NewTID(), NewTID(), NewTID()}

	g.AddWaits(self, others)
	for _, o := range others {
		node := g.GetNode(o)
		node.mu.Lock()
		_, waiting := node.prev[self]
		node.mu.Unlock()
		if !waiting {
			t.Fatalf("expected %v to record %v as a waiter", o, self)
		}
	}
}
