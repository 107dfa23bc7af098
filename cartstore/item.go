package cartstore

import "github.com/shopspring/decimal"

// Product is a catalog entry as handed to AddToCart.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// CartItem is one line of the cart. Its JSON form is the persisted snapshot format.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Totals summarises a cart.
type Totals struct {
	Items    int             `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// totalsOf sums the cart. Lines with no positive quantity count for nothing.
func totalsOf(items []CartItem) Totals {
	t := Totals{Subtotal: decimal.Zero}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		t.Items += it.Quantity
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		t.Subtotal = t.Subtotal.Add(line)
	}
	return t
}

// incremented adds one unit, counting a missing or non-positive quantity as zero.
func incremented(q int) int {
	if q < 0 {
		q = 0
	}
	return q + 1
}
