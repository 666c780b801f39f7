package catalog

import "testing"

func TestDefault_ListOrder(t *testing.T) {
	c := Default()

	products := c.List()
	if len(products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(products))
	}
	wantNames := []string{"Suitcase 250", "Suitcase 450", "Suitcase 650", "Suitcase 1050"}
	for i, p := range products {
		if p.ItemName != wantNames[i] {
			t.Errorf("product %d: expected %q, got %q", i, wantNames[i], p.ItemName)
		}
	}
}

func TestByID(t *testing.T) {
	c := Default()

	p, ok := c.ByID(3)
	if !ok {
		t.Fatal("expected product 3 to exist")
	}
	if p.ItemName != "Suitcase 650" || p.Price != 350 || p.InitialAvailableQuantity != 2 {
		t.Errorf("unexpected product: %+v", p)
	}

	if _, ok := c.ByID(99); ok {
		t.Error("expected product 99 to be missing")
	}
}

func TestProductKey(t *testing.T) {
	p := Product{ItemID: 7}
	if got := p.Key(); got != "item.7" {
		t.Errorf("expected item.7, got %q", got)
	}
}
