package cart

import "github.com/georgemunganga/printa-storefront/internal/modules/catalog"

// RelatedLimit is the number of recommendations shown under the cart.
const RelatedLimit = 4

// Item is a cart line joined with its catalog product.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal float64         `json:"subtotal"`
}

// View is the cart screen view-model.
type View struct {
	Items []Item `json:"items"`
	// Count is the number of units across resolved lines.
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// BuildView joins lines with products. Lines whose product is missing from
// the catalog, or whose quantity is not positive, are left out of both the
// items and the count. Neither input is modified.
func BuildView(products []catalog.Product, lines []Line) View {
	index := indexProducts(products)
	view := View{Items: make([]Item, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		p, ok := index[l.ProductID]
		if !ok {
			continue
		}
		item := Item{
			Product:  p,
			Quantity: l.Quantity,
			Subtotal: p.UnitPrice() * float64(l.Quantity),
		}
		view.Items = append(view.Items, item)
		view.Count += item.Quantity
		view.Total += item.Subtotal
	}
	return view
}

// Related recommends up to limit catalog products sharing a category with
// the cart, skipping anything already in it. Ordering is catalog order.
func Related(items []Item, products []catalog.Product, limit int) []catalog.Product {
	if len(items) == 0 || limit <= 0 {
		return []catalog.Product{}
	}
	out := make([]catalog.Product, 0, limit)
	categories := make(map[string]struct{}, len(items))
	inCart := make(map[string]struct{}, len(items))
	for _, it := range items {
		categories[it.Product.Category] = struct{}{}
		inCart[it.Product.ID] = struct{}{}
	}
	for _, p := range products {
		if len(out) == limit {
			break
		}
		if _, ok := inCart[p.ID]; ok {
			continue
		}
		if _, ok := categories[p.Category]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Reconcile removes lines whose product is no longer in the catalog and
// returns the removed ids in cart order.
func Reconcile(c *Cart, products []catalog.Product) []string {
	index := indexProducts(products)
	var pruned []string
	for _, l := range c.Lines() {
		if _, ok := index[l.ProductID]; !ok {
			c.Remove(l.ProductID)
			pruned = append(pruned, l.ProductID)
		}
	}
	return pruned
}

func indexProducts(products []catalog.Product) map[string]catalog.Product {
	index := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = p
		}
	}
	return index
}
