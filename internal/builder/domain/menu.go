package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Ingredient string

const (
	Salad  Ingredient = "salad"
	Bacon  Ingredient = "bacon"
	Cheese Ingredient = "cheese"
	Meat   Ingredient = "meat"
)

var (
	ErrUnknownIngredient = errors.New("unknown ingredient")
	ErrInvalidMenu       = errors.New("invalid menu")
)

// MenuItem is one row of the ingredient table: identifier, display label and unit price.
type MenuItem struct {
	Ingredient Ingredient      `json:"ingredient"`
	Label      string          `json:"label"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Menu is the fixed ingredient table plus the base price of an empty burger.
// Its order is the order layers and controls are rendered in.
type Menu struct {
	base  decimal.Decimal
	items []MenuItem
	index map[Ingredient]int
}

var defaultMenu = mustMenu(decimal.RequireFromString("4.00"),
	MenuItem{Ingredient: Salad, Label: "Salad", UnitPrice: decimal.RequireFromString("0.50")},
	MenuItem{Ingredient: Bacon, Label: "Bacon", UnitPrice: decimal.RequireFromString("0.70")},
	MenuItem{Ingredient: Cheese, Label: "Cheese", UnitPrice: decimal.RequireFromString("0.40")},
	MenuItem{Ingredient: Meat, Label: "Meat", UnitPrice: decimal.RequireFromString("1.30")},
)

// DefaultMenu returns the compiled-in ingredient table.
func DefaultMenu() *Menu { return defaultMenu }

func NewMenu(base decimal.Decimal, items ...MenuItem) (*Menu, error) {
	if base.IsNegative() {
		return nil, fmt.Errorf("%w: negative base price %s", ErrInvalidMenu, base)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no ingredients", ErrInvalidMenu)
	}
	m := &Menu{
		base:  base,
		items: make([]MenuItem, 0, len(items)),
		index: make(map[Ingredient]int, len(items)),
	}
	for _, item := range items {
		if item.Ingredient == "" {
			return nil, fmt.Errorf("%w: empty ingredient id", ErrInvalidMenu)
		}
		if !item.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: %s has non-positive price %s", ErrInvalidMenu, item.Ingredient, item.UnitPrice)
		}
		if _, dup := m.index[item.Ingredient]; dup {
			return nil, fmt.Errorf("%w: duplicate ingredient %s", ErrInvalidMenu, item.Ingredient)
		}
		m.index[item.Ingredient] = len(m.items)
		m.items = append(m.items, item)
	}
	return m, nil
}

func mustMenu(base decimal.Decimal, items ...MenuItem) *Menu {
	m, err := NewMenu(base, items...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Menu) BasePrice() decimal.Decimal { return m.base }

// Items returns a copy of the table in render order.
func (m *Menu) Items() []MenuItem {
	out := make([]MenuItem, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Menu) Lookup(id Ingredient) (MenuItem, bool) {
	i, ok := m.index[id]
	if !ok {
		return MenuItem{}, false
	}
	return m.items[i], true
}

func (m *Menu) Has(id Ingredient) bool {
	_, ok := m.index[id]
	return ok
}

// Price recomputes the total from scratch: base plus each count times its unit price.
func (m *Menu) Price(counts Counts) decimal.Decimal {
	total := m.base
	for _, item := range m.items {
		if n := counts[item.Ingredient]; n > 0 {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	return total
}

// ZeroCounts returns a count map with every menu ingredient at zero.
func (m *Menu) ZeroCounts() Counts {
	c := make(Counts, len(m.items))
	for _, item := range m.items {
		c[item.Ingredient] = 0
	}
	return c
}
