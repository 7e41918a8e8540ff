package grocery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyCart is returned by PlaceOrder for an empty cart; the tool layer
// turns it into an explanatory message rather than a fault.
var ErrEmptyCart = errors.New("grocery: cart is empty")

// OrderLine is one priced cart line inside a persisted order.
type OrderLine struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// Order is an immutable record of a finalized cart.
type Order struct {
	Customer  string      `json:"customer"`
	Items     []OrderLine `json:"items"`
	Total     float64     `json:"total"`
	Timestamp string      `json:"timestamp"`
}

// OrderRepository writes one JSON file per placed order.
type OrderRepository struct {
	dir string
	now func() time.Time
}

// NewOrderRepository returns a repository writing under dir, creating it if
// needed.
func NewOrderRepository(dir string) (*OrderRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create orders dir: %w", err)
	}
	return &OrderRepository{dir: dir, now: time.Now}, nil
}

// PlaceOrder prices every cart line against the catalog, persists the order,
// and clears the cart. Cart items missing from the catalog are skipped; when
// nothing remains the cart is treated as empty. The filename keeps the
// second-granularity timestamp for operators but gains a random suffix so two
// orders in the same second cannot collide.
func (r *OrderRepository) PlaceOrder(cart Cart, catalog Catalog, customer string) (Order, string, error) {
	if len(cart) == 0 {
		return Order{}, "", ErrEmptyCart
	}

	var lines []OrderLine
	var total float64
	for _, name := range cart.Names() {
		item, ok := catalog.Find(name)
		if !ok {
			continue
		}
		qty := cart[name]
		linePrice := item.Price * float64(qty)
		lines = append(lines, OrderLine{Name: name, Qty: qty, Price: linePrice})
		total += linePrice
	}
	if len(lines) == 0 {
		return Order{}, "", ErrEmptyCart
	}

	ts := r.now()
	order := Order{
		Customer:  customer,
		Items:     lines,
		Total:     total,
		Timestamp: ts.Format(time.RFC3339),
	}

	name := fmt.Sprintf("order_%s_%s.json", ts.Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return Order{}, "", fmt.Errorf("encode order: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Order{}, "", fmt.Errorf("write order file: %w", err)
	}

	cart.Clear()
	return order, path, nil
}

// AddRecipe increments the cart by one unit of every listed ingredient,
// regardless of recipe serving size. Ingredients missing from the catalog are
// returned so the agent can tell the user.
func AddRecipe(cart Cart, catalog Catalog, recipes RecipeBook, recipe string) (added, missing []string, err error) {
	ingredients, ok := recipes[recipe]
	if !ok {
		return nil, nil, fmt.Errorf("unknown recipe %q", recipe)
	}
	for _, ing := range ingredients {
		if _, ok := catalog.Find(ing); !ok {
			missing = append(missing, ing)
			continue
		}
		cart.Add(ing, 1)
		added = append(added, ing)
	}
	return added, missing, nil
}
