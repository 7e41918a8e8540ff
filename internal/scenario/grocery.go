package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/agent"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/grocery"
)

const groceryInstructions = `You are a friendly grocery ordering assistant on a voice call.
Help the caller build a cart from the store catalog and place an order.
Only offer items that exist in the catalog. Mention prices when asked.
Use add_to_cart and remove_from_cart as the caller changes their mind,
add_recipe_ingredients when they ask for everything needed for a dish,
view_cart to recap, and place_order once they confirm and give their name.
Keep replies short and conversational.`

// Grocery builds the ordering assistant. The cart lives only as long as this
// scenario instance, i.e. one call.
func Grocery(catalog grocery.Catalog, recipes grocery.RecipeBook, orders *grocery.OrderRepository) Scenario {
	cart := grocery.Cart{}

	instructions := groceryInstructions
	if len(catalog.Items) > 0 {
		var names []string
		for _, it := range catalog.Items {
			names = append(names, fmt.Sprintf("%s ($%.2f)", it.Name, it.Price))
		}
		instructions += "\nCatalog: " + strings.Join(names, ", ") + "."
	}
	if len(recipes) > 0 {
		var names []string
		for name := range recipes {
			names = append(names, name)
		}
		instructions += "\nKnown recipes: " + strings.Join(names, ", ") + "."
	}

	addToCart := agent.Tool{
		Name:        "add_to_cart",
		Description: "Add a quantity of a catalog item to the caller's cart.",
		Schema: objectSchema(map[string]any{
			"item":     stringProp("Catalog item name"),
			"quantity": numberProp("How many to add, default 1"),
		}, "item"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Item     string `json:"item"`
				Quantity int    `json:"quantity"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read that item, please try again.", nil
			}
			if _, ok := catalog.Find(in.Item); !ok {
				return fmt.Sprintf("%q is not in the catalog.", in.Item), nil
			}
			cart.Add(in.Item, in.Quantity)
			return fmt.Sprintf("Added %d x %s. The cart now has %d of it.", max(in.Quantity, 1), in.Item, cart[in.Item]), nil
		},
	}

	removeFromCart := agent.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a quantity of an item from the cart.",
		Schema: objectSchema(map[string]any{
			"item":     stringProp("Catalog item name"),
			"quantity": numberProp("How many to remove, default 1"),
		}, "item"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Item     string `json:"item"`
				Quantity int    `json:"quantity"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read that item, please try again.", nil
			}
			if _, ok := cart[in.Item]; !ok {
				return fmt.Sprintf("There is no %s in the cart.", in.Item), nil
			}
			cart.Remove(in.Item, in.Quantity)
			return fmt.Sprintf("Removed %s. %s", in.Item, describeCart(cart)), nil
		},
	}

	addRecipe := agent.Tool{
		Name:        "add_recipe_ingredients",
		Description: "Add one of each ingredient of a known recipe to the cart.",
		Schema: objectSchema(map[string]any{
			"recipe": stringProp("Recipe name"),
		}, "recipe"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Recipe string `json:"recipe"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the recipe name, please try again.", nil
			}
			added, missing, err := grocery.AddRecipe(cart, catalog, recipes, in.Recipe)
			if err != nil {
				return fmt.Sprintf("I don't have a recipe called %q.", in.Recipe), nil
			}
			reply := fmt.Sprintf("Added ingredients for %s: %s.", in.Recipe, strings.Join(added, ", "))
			if len(missing) > 0 {
				reply += fmt.Sprintf(" Not stocked: %s.", strings.Join(missing, ", "))
			}
			return reply, nil
		},
	}

	viewCart := agent.Tool{
		Name:        "view_cart",
		Description: "List the cart contents and the running total.",
		Schema:      objectSchema(map[string]any{}),
		Handler: func(ctx context.Context, args string) (string, error) {
			return describeCart(cart) + " " + describeTotal(cart, catalog), nil
		},
	}

	placeOrder := agent.Tool{
		Name:        "place_order",
		Description: "Finalize the order for the caller. Requires their name and a non-empty cart.",
		Schema: objectSchema(map[string]any{
			"customer": stringProp("The caller's name for the order"),
		}, "customer"),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Customer string `json:"customer"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return "I couldn't read the customer name, please try again.", nil
			}
			if strings.TrimSpace(in.Customer) == "" {
				return "I need a name for the order before placing it.", nil
			}
			order, _, err := orders.PlaceOrder(cart, catalog, in.Customer)
			if errors.Is(err, grocery.ErrEmptyCart) {
				return "The cart is empty, there is nothing to order yet.", nil
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Order placed for %s, %d items, total $%.2f.", order.Customer, len(order.Items), order.Total), nil
		},
	}

	return Scenario{
		Name:         "grocery",
		Instructions: instructions,
		Tools:        []agent.Tool{addToCart, removeFromCart, addRecipe, viewCart, placeOrder},
	}
}

func describeCart(cart grocery.Cart) string {
	if len(cart) == 0 {
		return "The cart is empty."
	}
	var parts []string
	for _, name := range cart.Names() {
		parts = append(parts, fmt.Sprintf("%d x %s", cart[name], name))
	}
	return "The cart has " + strings.Join(parts, ", ") + "."
}

func describeTotal(cart grocery.Cart, catalog grocery.Catalog) string {
	var total float64
	for _, name := range cart.Names() {
		if item, ok := catalog.Find(name); ok {
			total += item.Price * float64(cart[name])
		}
	}
	return fmt.Sprintf("Running total $%.2f.", total)
}
