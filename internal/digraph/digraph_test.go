package digraph

import "testing"

func TestTopoSortDiamond(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	d := g.AddNode("d")
	g.AddEdge(a, c)
	g.AddEdge(b, c)
	g.AddEdge(c, d)

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 nodes in order, got %d", len(order))
	}

	pos := map[NodeIndex]int{}
	for i, idx := range order {
		pos[idx] = i
	}
	if pos[c] < pos[a] || pos[c] < pos[b] {
		t.Fatalf("c must come after both a and b: %v", order)
	}
	if pos[d] < pos[c] {
		t.Fatalf("d must come after c: %v", order)
	}
}

func TestTopoSortCycle(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	if _, err := g.TopoSort(); err != ErrCycle {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestPredecessors(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, c)
	g.AddEdge(b, c)

	preds := g.Predecessors(c)
	if len(preds) != 2 {
		t.Fatalf("expected 2 predecessors, got %d", len(preds))
	}
}

func TestNodeOutOfRange(t *testing.T) {
	g := New[int]()
	g.AddNode(1)
	if _, err := g.Node(NodeIndex(5)); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
