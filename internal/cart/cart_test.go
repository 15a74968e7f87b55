package cart

import (
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
)

func TestAddRemoveTotal(t *testing.T) {
	s := NewStore()

	a := s.Add(1, model.CartItem{Name: "Card A", PriceCents: 1000})
	b := s.Add(1, model.CartItem{Name: "Card B", PriceCents: 2500})
	s.Add(2, model.CartItem{Name: "Other user", PriceCents: 9900})

	if got := s.Total(1); got != 3500 {
		t.Fatalf("total = %d, want 3500", got)
	}
	if got := len(s.Items(1)); got != 2 {
		t.Fatalf("items = %d, want 2", got)
	}

	if err := s.Remove(1, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.Total(1); got != 2500 {
		t.Fatalf("total after remove = %d, want 2500", got)
	}

	if err := s.Remove(1, "missing"); err != ErrItemNotFound {
		t.Fatalf("remove missing: err = %v, want ErrItemNotFound", err)
	}

	_ = b
	if got := s.Total(2); got != 9900 {
		t.Fatalf("other user's cart must be untouched, total = %d", got)
	}
}

func TestPendingSlotHoldsSingleItem(t *testing.T) {
	s := NewStore()

	s.StashPending("guest-1", model.CartItem{Name: "First", PriceCents: 100})
	s.StashPending("guest-1", model.CartItem{Name: "Second", PriceCents: 200})

	item, ok := s.ReplayPending("guest-1", 7)
	if !ok {
		t.Fatalf("pending item expected")
	}
	if item.Name != "Second" {
		t.Fatalf("pending slot must hold the last item, got %q", item.Name)
	}

	items := s.Items(7)
	if len(items) != 1 || items[0].Name != "Second" {
		t.Fatalf("cart after replay = %+v, want single Second", items)
	}

	// слот одноразовый
	if _, ok := s.ReplayPending("guest-1", 7); ok {
		t.Fatalf("pending slot must be empty after replay")
	}
}

func TestReplayWithoutPending(t *testing.T) {
	s := NewStore()

	if _, ok := s.ReplayPending("guest-x", 5); ok {
		t.Fatalf("no pending item expected")
	}
	if got := len(s.Items(5)); got != 0 {
		t.Fatalf("cart must stay empty, got %d items", got)
	}
}

func TestDropPending(t *testing.T) {
	s := NewStore()

	s.StashPending("guest-2", model.CartItem{ProductID: "p1", PriceCents: 100})
	s.DropPending("guest-2")

	if _, ok := s.ReplayPending("guest-2", 9); ok {
		t.Fatalf("dropped pending item must not be replayed")
	}
}

func TestRemoveMany(t *testing.T) {
	s := NewStore()

	a := s.Add(1, model.CartItem{Name: "A", PriceCents: 100})
	s.Add(1, model.CartItem{Name: "B", PriceCents: 200})
	c := s.Add(1, model.CartItem{Name: "C", PriceCents: 300})

	s.RemoveMany(1, []string{a.ID, c.ID})

	items := s.Items(1)
	if len(items) != 1 || items[0].Name != "B" {
		t.Fatalf("items after RemoveMany = %+v, want single B", items)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Add(1, model.CartItem{Name: "A", PriceCents: 100})
	s.Clear(1)

	if got := len(s.Items(1)); got != 0 {
		t.Fatalf("items after clear = %d, want 0", got)
	}
	if got := s.Total(1); got != 0 {
		t.Fatalf("total after clear = %d, want 0", got)
	}
}
