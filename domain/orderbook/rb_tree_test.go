package orderbook

import (
	"math/rand/v2"
	"testing"
)

func TestRBTreeInsertFindDelete(t *testing.T) {
	tree := NewRBTree()
	pl1 := tree.UpsertLevel(100)
	if pl1 == nil {
		t.Fatal("UpsertLevel failed")
	}
	if pl2 := tree.FindLevel(100); pl2 != pl1 {
		t.Error("FindLevel did not return same PriceLevel")
	}
	if tree.UpsertLevel(100) != pl1 {
		t.Error("UpsertLevel created a duplicate level")
	}

	tree.UpsertLevel(200)
	if tree.MinLevel().Price != 100 {
		t.Error("expected min=100")
	}
	if tree.MaxLevel().Price != 200 {
		t.Error("expected max=200")
	}

	if !tree.DeleteLevel(100) {
		t.Error("DeleteLevel failed")
	}
	if tree.FindLevel(100) != nil {
		t.Error("expected level 100 to be gone")
	}
	if tree.MinLevel().Price != 200 {
		t.Error("expected min to move to 200")
	}
}

func TestDeleteNonExistentLevel(t *testing.T) {
	tree := NewRBTree()
	if tree.DeleteLevel(123) {
		t.Error("expected false when deleting non-existent level")
	}
}

func TestEmptyTreeMinMax(t *testing.T) {
	tree := NewRBTree()
	if tree.MinLevel() != nil || tree.MaxLevel() != nil {
		t.Error("expected nil extremes on empty tree")
	}
	tree.UpsertLevel(5)
	tree.DeleteLevel(5)
	if tree.MinLevel() != nil || tree.MaxLevel() != nil {
		t.Error("expected nil extremes after deleting the last level")
	}
}

func TestRBTreeRandomizedAgainstMap(t *testing.T) {
	tree := NewRBTree()
	ref := make(map[uint32]bool)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 5000; i++ {
		p := uint32(rng.IntN(500))
		if rng.IntN(3) == 0 {
			if tree.DeleteLevel(p) != ref[p] {
				t.Fatalf("delete(%d) disagreed with reference", p)
			}
			delete(ref, p)
		} else {
			tree.UpsertLevel(p)
			ref[p] = true
		}

		if tree.Size() != len(ref) {
			t.Fatalf("size %d, want %d", tree.Size(), len(ref))
		}
		checkExtremes(t, tree, ref)
	}

	var last uint32
	first := true
	tree.ForEachAscending(func(pl *PriceLevel) bool {
		if !first && pl.Price <= last {
			t.Fatalf("ascending walk out of order: %d after %d", pl.Price, last)
		}
		first = false
		last = pl.Price
		return true
	})
	if blackHeight(t, tree, tree.root) < 0 {
		t.Fatal("red-black properties violated")
	}
}

func checkExtremes(t *testing.T, tree *RBTree, ref map[uint32]bool) {
	t.Helper()
	if len(ref) == 0 {
		if tree.MinLevel() != nil {
			t.Fatal("expected empty tree")
		}
		return
	}
	lo, hi := uint32(1<<32-1), uint32(0)
	for p := range ref {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if tree.MinLevel().Price != lo || tree.MaxLevel().Price != hi {
		t.Fatalf("extremes (%d,%d), want (%d,%d)",
			tree.MinLevel().Price, tree.MaxLevel().Price, lo, hi)
	}
}

func blackHeight(t *testing.T, tree *RBTree, n *node) int {
	if n == tree.nil {
		return 1
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return -1
	}
	l := blackHeight(t, tree, n.left)
	r := blackHeight(t, tree, n.right)
	if l < 0 || r < 0 || l != r {
		return -1
	}
	if n.color == black {
		return l + 1
	}
	return l
}
