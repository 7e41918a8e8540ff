package grocery

import "sort"

// Cart maps catalog item name to requested quantity. It lives only for the
// duration of one conversational session and is cleared when an order is
// placed. Not safe for concurrent use; each session owns its own cart.
type Cart map[string]int

// Add increments the quantity for an item. Non-positive quantities are
// treated as 1.
func (c Cart) Add(name string, qty int) {
	if qty < 1 {
		qty = 1
	}
	c[name] += qty
}

// Remove decrements the quantity, deleting the line when it reaches zero.
// Removing more than present clears the line.
func (c Cart) Remove(name string, qty int) {
	if qty < 1 {
		qty = 1
	}
	left := c[name] - qty
	if left > 0 {
		c[name] = left
		return
	}
	delete(c, name)
}

// Clear empties the cart.
func (c Cart) Clear() {
	for k := range c {
		delete(c, k)
	}
}

// Names returns the item names in stable (sorted) order.
func (c Cart) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
