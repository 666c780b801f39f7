// Package catalog holds the fixed product list for the stock-reservation
// use case. The list describes initial quantities only; current availability
// lives in the ledger under each product's Key.
package catalog

import "fmt"

type Product struct {
	ItemID                   int64  `json:"itemId"`
	ItemName                 string `json:"itemName"`
	Price                    int64  `json:"price"`
	InitialAvailableQuantity int64  `json:"initialAvailableQuantity"`
}

// Key is the ledger key for the product's availability counter.
func (p Product) Key() string {
	return fmt.Sprintf("item.%d", p.ItemID)
}

type Catalog struct {
	products []Product
	byID     map[int64]Product
}

func New(products []Product) *Catalog {
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ItemID] = p
	}
	return &Catalog{products: products, byID: byID}
}

// Default returns the stock product list.
func Default() *Catalog {
	return New([]Product{
		{ItemID: 1, ItemName: "Suitcase 250", Price: 50, InitialAvailableQuantity: 4},
		{ItemID: 2, ItemName: "Suitcase 450", Price: 100, InitialAvailableQuantity: 10},
		{ItemID: 3, ItemName: "Suitcase 650", Price: 350, InitialAvailableQuantity: 2},
		{ItemID: 4, ItemName: "Suitcase 1050", Price: 550, InitialAvailableQuantity: 5},
	})
}

// List returns the products in catalog order, independent of current
// reservation state.
func (c *Catalog) List() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) ByID(id int64) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}
