// Package cart merges order line items and derives priced totals.
// Every mutation is synchronous and completes before returning.
package cart

import (
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinQuantity = 1
	MaxQuantity = 9999
	// ModifierMultiplier applies to catalog and search adds while the modifier is held.
	ModifierMultiplier = 10
)

var hundred = decimal.NewFromInt(100)

// Candidate is an item about to enter the cart, tagged with its source.
type Candidate struct {
	Source  model.ItemSource
	Product model.Product  // catalog, search
	Item    model.CartItem // custom
}

func CatalogItem(p model.Product) Candidate {
	return Candidate{Source: model.SourceCatalog, Product: p}
}

func SearchResult(p model.Product) Candidate {
	return Candidate{Source: model.SourceSearch, Product: p}
}

// CustomItem wraps a manually entered line. Its Quantity is the increment.
func CustomItem(item model.CartItem) Candidate {
	item.Source = model.SourceCustom
	return Candidate{Source: model.SourceCustom, Item: item}
}

// Increment returns the default quantity step for a candidate.
// Quick items use their own default, search results add one,
// custom items carry their quantity. The modifier does not apply to custom items.
func Increment(c Candidate, modifier bool) int {
	var inc int
	switch c.Source {
	case model.SourceCatalog:
		inc = c.Product.DefaultQuantity
		if inc < 1 {
			inc = 1
		}
	case model.SourceSearch:
		inc = 1
	case model.SourceCustom:
		inc = c.Item.Quantity
		if inc < 1 {
			inc = 1
		}
		return inc
	}
	if modifier {
		inc *= ModifierMultiplier
	}
	return inc
}

func (c Candidate) line() model.CartItem {
	if c.Source == model.SourceCustom {
		return c.Item
	}
	return model.CartItem{
		ProductID: c.Product.ID,
		Name:      c.Product.Name,
		SKU:       c.Product.SKU,
		UnitPrice: c.Product.UnitPrice,
		TaxRate:   c.Product.TaxRate,
		Source:    c.Source,
	}
}

// matches reports whether an existing line absorbs the candidate.
// Custom items share placeholder product ids, so they also match on name.
func (c Candidate) matches(line model.CartItem) bool {
	l := c.line()
	if line.ProductID != l.ProductID {
		return false
	}
	if c.Source == model.SourceCustom {
		return line.Source == model.SourceCustom && line.Name == l.Name
	}
	return line.Source != model.SourceCustom
}

// AddItem merges the candidate into an existing line or appends a new one
// with quantity = increment. A merged candidate's discount adds to the line's.
func AddItem(c *model.Cart, cand Candidate, increment int) error {
	if !cand.Source.Valid() {
		return apierror.Invalid("source", "oneof=catalog search custom")
	}
	if increment < 1 {
		return apierror.Invalid("quantity", "min=1")
	}
	l := cand.line()
	if l.UnitPrice.IsNegative() {
		return apierror.Invalid("unit_price", "min=0")
	}
	if l.DiscountAmount.IsNegative() {
		return apierror.Invalid("discount_amount", "min=0")
	}

	for i := range c.Items {
		if cand.matches(c.Items[i]) {
			c.Items[i].Quantity = clamp(c.Items[i].Quantity + increment)
			c.Items[i].DiscountAmount = c.Items[i].DiscountAmount.Add(l.DiscountAmount)
			return nil
		}
	}
	l.Quantity = clamp(increment)
	c.Items = append(c.Items, l)
	return nil
}

// UpdateQuantity sets the quantity of every line for productID, clamped to
// [MinQuantity, MaxQuantity]. A quantity <= 0 removes the lines.
func UpdateQuantity(c *model.Cart, productID uuid.UUID, quantity int) {
	if quantity <= 0 {
		RemoveItem(c, productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = clamp(quantity)
		}
	}
}

// UpdateLine is UpdateQuantity addressed by position, for custom lines that
// share a placeholder product id.
func UpdateLine(c *model.Cart, index, quantity int) error {
	if index < 0 || index >= len(c.Items) {
		return apierror.Invalid("line", fmt.Sprintf("index %d out of range", index))
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:index], c.Items[index+1:]...)
		return nil
	}
	c.Items[index].Quantity = clamp(quantity)
	return nil
}

// RemoveItem drops every line for productID unconditionally.
func RemoveItem(c *model.Cart, productID uuid.UUID) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	clear(c.Items[len(kept):])
	c.Items = kept
}

// Reset clears all lines and any editing-order association.
func Reset(c *model.Cart) {
	c.Items = nil
	c.EditingOrderID = nil
}

// LoadOrder replaces the cart with the lines of a persisted order and enters
// editing mode.
func LoadOrder(c *model.Cart, orderID uuid.UUID, items []model.CartItem) {
	id := orderID
	c.Items = append([]model.CartItem(nil), items...)
	c.EditingOrderID = &id
}

// ComputeTotals is pure: tax is accumulated per line so carts mixing taxable
// and exempt lines price correctly. No intermediate rounding.
func ComputeTotals(items []model.CartItem) model.Totals {
	t := model.Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Discount: decimal.Zero,
	}
	for _, it := range items {
		gross := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		t.Subtotal = t.Subtotal.Add(gross)
		t.Tax = t.Tax.Add(gross.Mul(it.TaxRate).Div(hundred))
		t.Discount = t.Discount.Add(it.DiscountAmount)
	}
	t.Total = t.Subtotal.Add(t.Tax).Sub(t.Discount)
	return t
}

func clamp(q int) int {
	return max(MinQuantity, min(q, MaxQuantity))
}
