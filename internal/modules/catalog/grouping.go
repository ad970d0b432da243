package catalog

import "strings"

// PreviewSize is how many products a category section shows before "view all".
const PreviewSize = 4

// Group is one category section of the storefront home page.
type Group struct {
	Category Category  `json:"category"`
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	ViewAll  bool      `json:"view_all"`
}

// ValidCategories keeps the categories that at least one product carries,
// compared by exact name.
func ValidCategories(categories []Category, products []Product) []Category {
	present := make(map[string]struct{}, len(products))
	for _, p := range products {
		present[p.Category] = struct{}{}
	}
	valid := make([]Category, 0, len(categories))
	for _, c := range categories {
		if _, ok := present[c.Name]; ok {
			valid = append(valid, c)
		}
	}
	return valid
}

// GroupByCategory builds one section per valid category in category-list order. Each
// section previews the first PreviewSize matches in catalog order.
func GroupByCategory(categories []Category, products []Product) []Group {
	groups := make([]Group, 0, len(categories))
	for _, c := range ValidCategories(categories, products) {
		matches := InCategory(products, c.Name)
		preview := matches
		if len(preview) > PreviewSize {
			preview = preview[:PreviewSize:PreviewSize]
		}
		groups = append(groups, Group{
			Category: c,
			Products: preview,
			Total:    len(matches),
			ViewAll:  len(matches) > PreviewSize,
		})
	}
	return groups
}

// InCategory returns every product whose category equals name, in catalog order.
func InCategory(products []Product, name string) []Product {
	out := make([]Product, 0)
	for _, p := range products {
		if p.Category == name {
			out = append(out, p)
		}
	}
	return out
}

// Search matches query case-insensitively against name, category and
// description. An empty query returns products unchanged.
func Search(products []Product, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}
	out := make([]Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}

// Find looks a product up by id.
func Find(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
