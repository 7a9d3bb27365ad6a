package checkout

import (
	"strings"

	"github.com/ferreteria/storefront/services"
)

// CartItem is one product line.
type CartItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gt=0,max=999"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

// Subtotal is quantity times unit price.
func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Cart holds the items of one checkout session. Not safe for concurrent use;
// the owning Session serializes access.
type Cart struct {
	items []CartItem
}

// Set adds an item or replaces the quantity of an existing one. A quantity of
// zero removes it.
func (c *Cart) Set(item CartItem) error {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return services.ErrInvalidInput.WithDetail("productId", "productId is required")
	}
	if item.Quantity < 0 || item.UnitPrice < 0 {
		return services.ErrInvalidInput.WithDetail("quantity", "quantity and price must not be negative")
	}

	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			if item.Quantity == 0 {
				c.items = append(c.items[:i], c.items[i+1:]...)
				return nil
			}
			c.items[i] = item
			return nil
		}
	}
	if item.Quantity == 0 {
		return nil
	}
	c.items = append(c.items, item)
	return nil
}

// Remove drops a product from the cart.
func (c *Cart) Remove(productID string) {
	_ = c.Set(CartItem{ProductID: productID})
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Subtotal sums all lines.
func (c *Cart) Subtotal() float64 {
	var total float64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}
