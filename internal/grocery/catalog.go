package grocery

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// Item is one purchasable catalog entry.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Catalog is the read-only reference data for a session. It is loaded once
// and passed explicitly to whatever needs it; nothing mutates it after load.
type Catalog struct {
	Items []Item `json:"items"`
}

// Find returns the item with the given name (case-sensitive).
func (c Catalog) Find(name string) (Item, bool) {
	for _, it := range c.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// RecipeBook maps recipe name to its ingredient list.
type RecipeBook map[string][]string

// LoadCatalog reads the static catalog file. A missing or unreadable file is
// logged and yields an empty catalog rather than failing startup.
func LoadCatalog(path string) Catalog {
	var c Catalog
	if err := loadJSON(path, &c); err != nil {
		log.Printf("grocery: catalog unavailable, starting empty: %v", err)
		return Catalog{}
	}
	return c
}

// LoadRecipes reads the static recipe file with the same fallback behavior.
func LoadRecipes(path string) RecipeBook {
	var r RecipeBook
	if err := loadJSON(path, &r); err != nil {
		log.Printf("grocery: recipes unavailable, starting empty: %v", err)
		return RecipeBook{}
	}
	return r
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
