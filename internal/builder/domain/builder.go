package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Counts maps an ingredient to how many units of it are on the burger.
type Counts map[Ingredient]int

func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (c Counts) clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// OrderState is an immutable snapshot handed to observers and presentation code.
type OrderState struct {
	Ingredients Counts          `json:"ingredients"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Purchasable bool            `json:"purchasable"`
	Purchasing  bool            `json:"purchasing"`
}

// Observer receives the state produced by a mutation.
type Observer func(OrderState)

// PurchaseConfirmed is emitted when an open, purchasable order is confirmed.
type PurchaseConfirmed struct {
	Ingredients Counts
	TotalPrice  decimal.Decimal
}

// Builder owns the ingredient counts, running total and purchasing flag of
// one burger order. It is not safe for concurrent use; callers serialize
// intents per session.
type Builder struct {
	menu       *Menu
	counts     Counts
	total      decimal.Decimal
	purchasing bool

	// Unsubscribed slots are set to nil so registration order is kept.
	observers []Observer
}

func NewBuilder(menu *Menu) *Builder {
	return &Builder{
		menu:      menu,
		counts:    menu.ZeroCounts(),
		total:     menu.BasePrice(),
	}
}

// RestoreBuilder rebuilds a Builder from persisted counts. The total is
// recomputed from the counts rather than trusted from storage.
func RestoreBuilder(menu *Menu, counts Counts, purchasing bool) (*Builder, error) {
	b := NewBuilder(menu)
	for id, n := range counts {
		if !menu.Has(id) {
			return nil, fmt.Errorf("restore: %w: %q", ErrUnknownIngredient, id)
		}
		if n < 0 {
			return nil, fmt.Errorf("restore: negative count %d for %s", n, id)
		}
		b.counts[id] = n
	}
	b.total = menu.Price(b.counts)
	b.purchasing = purchasing
	return b, nil
}

func (b *Builder) Menu() *Menu { return b.menu }

func (b *Builder) State() OrderState {
	return OrderState{
		Ingredients: b.counts.clone(),
		TotalPrice:  b.total,
		Purchasable: b.purchasable(),
		Purchasing:  b.purchasing,
	}
}

func (b *Builder) purchasable() bool {
	return b.counts.Total() > 0
}

// Subscribe registers o for every state change and returns a func removing
// it. Observers are called in the order they subscribed.
func (b *Builder) Subscribe(o Observer) func() {
	idx := len(b.observers)
	b.observers = append(b.observers, o)
	return func() { b.observers[idx] = nil }
}

func (b *Builder) AddIngredient(id Ingredient) (OrderState, error) {
	item, ok := b.menu.Lookup(id)
	if !ok {
		return b.State(), fmt.Errorf("add %q: %w", id, ErrUnknownIngredient)
	}
	b.counts[id]++
	b.total = b.total.Add(item.UnitPrice)
	return b.changed(), nil
}

// RemoveIngredient is a no-op when the ingredient is already at zero.
func (b *Builder) RemoveIngredient(id Ingredient) (OrderState, error) {
	item, ok := b.menu.Lookup(id)
	if !ok {
		return b.State(), fmt.Errorf("remove %q: %w", id, ErrUnknownIngredient)
	}
	if b.counts[id] == 0 {
		return b.State(), nil
	}
	b.counts[id]--
	b.total = b.total.Sub(item.UnitPrice)
	return b.changed(), nil
}

func (b *Builder) OpenPurchase() OrderState {
	return b.setPurchasing(true)
}

func (b *Builder) CancelPurchase() OrderState {
	return b.setPurchasing(false)
}

// ConfirmPurchase closes the confirmation modal. The returned event is nil
// unless the modal was open and the order had at least one ingredient.
func (b *Builder) ConfirmPurchase() (OrderState, *PurchaseConfirmed) {
	var ev *PurchaseConfirmed
	if b.purchasing && b.purchasable() {
		ev = &PurchaseConfirmed{Ingredients: b.counts.clone(), TotalPrice: b.total}
	}
	return b.setPurchasing(false), ev
}

func (b *Builder) setPurchasing(v bool) OrderState {
	if b.purchasing == v {
		return b.State()
	}
	b.purchasing = v
	return b.changed()
}

func (b *Builder) changed() OrderState {
	s := b.State()
	for _, o := range b.observers {
		if o != nil {
			o(s)
		}
	}
	return s
}
