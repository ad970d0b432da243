package cart

// Line is one product/quantity entry of a cart.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart maps product ids to positive quantities and remembers the order in
// which each id was first added. It is not safe for concurrent use; the
// session store serialises access.
type Cart struct {
	order []string
	qty   map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{qty: make(map[string]int)}
}

// FromLines rebuilds a cart, dropping non-positive quantities. Repeated ids
// are summed.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		c.Add(l.ProductID, l.Quantity)
	}
	return c
}

// Add increases the quantity of id by n and returns the new quantity.
// n <= 0 leaves the cart unchanged.
func (c *Cart) Add(id string, n int) int {
	if id == "" || n <= 0 {
		return c.qty[id]
	}
	return c.SetQuantity(id, c.qty[id]+n)
}

// SetQuantity sets the quantity of id. A quantity of zero or less removes the line.
func (c *Cart) SetQuantity(id string, q int) int {
	if id == "" {
		return 0
	}
	if q <= 0 {
		c.Remove(id)
		return 0
	}
	if _, ok := c.qty[id]; !ok {
		c.order = append(c.order, id)
	}
	c.qty[id] = q
	return q
}

// Increment adds one unit of id.
func (c *Cart) Increment(id string) int { return c.Add(id, 1) }

// Decrement removes one unit of id; going below one removes the line.
func (c *Cart) Decrement(id string) int {
	q, ok := c.qty[id]
	if !ok {
		return 0
	}
	return c.SetQuantity(id, q-1)
}

// Remove deletes the line for id and reports whether it existed.
func (c *Cart) Remove(id string) bool {
	if _, ok := c.qty[id]; !ok {
		return false
	}
	delete(c.qty, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.order = nil
	c.qty = make(map[string]int)
}

// Quantity returns the quantity of id, zero when absent.
func (c *Cart) Quantity(id string) int { return c.qty[id] }

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.order) }

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, Line{ProductID: id, Quantity: c.qty[id]})
	}
	return lines
}

// Merge adds every line of other into c, preserving c's order first.
func (c *Cart) Merge(other []Line) {
	for _, l := range other {
		c.Add(l.ProductID, l.Quantity)
	}
}
