package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propIngredients = []Ingredient{Salad, Bacon, Cheese, Meat}

// apply runs an encoded intent: 0-3 add, 4-7 remove, 8 open, 9 cancel.
func apply(b *Builder, op int) {
	switch {
	case op < 4:
		_, _ = b.AddIngredient(propIngredients[op])
	case op < 8:
		_, _ = b.RemoveIngredient(propIngredients[op-4])
	case op == 8:
		b.OpenPurchase()
	default:
		b.CancelPurchase()
	}
}

func TestBuilderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1337)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	ops := gen.SliceOf(gen.IntRange(0, 9))

	properties.Property("counts never go negative", prop.ForAll(
		func(seq []int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
				for _, n := range b.State().Ingredients {
					if n < 0 {
						return false
					}
				}
			}
			return true
		},
		ops,
	))

	properties.Property("maintained total matches recomputed total", prop.ForAll(
		func(seq []int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
			}
			s := b.State()
			return s.TotalPrice.Equal(DefaultMenu().Price(s.Ingredients))
		},
		ops,
	))

	properties.Property("purchasable iff at least one ingredient", prop.ForAll(
		func(seq []int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
				s := b.State()
				if s.Purchasable != (s.Ingredients.Total() > 0) {
					return false
				}
			}
			return true
		},
		ops,
	))

	properties.Property("remove at zero changes nothing", prop.ForAll(
		func(seq []int, which int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
			}
			id := propIngredients[which]
			for b.State().Ingredients[id] > 0 {
				_, _ = b.RemoveIngredient(id)
			}
			before := b.State()
			after, err := b.RemoveIngredient(id)
			return err == nil &&
				after.TotalPrice.Equal(before.TotalPrice) &&
				after.Purchasable == before.Purchasable &&
				after.Ingredients.Total() == before.Ingredients.Total()
		},
		ops,
		gen.IntRange(0, 3),
	))

	properties.Property("open then cancel leaves the order untouched", prop.ForAll(
		func(seq []int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
			}
			before := b.State()
			b.OpenPurchase()
			after := b.CancelPurchase()
			return !after.Purchasing &&
				after.TotalPrice.Equal(before.TotalPrice) &&
				after.Ingredients.Total() == before.Ingredients.Total()
		},
		ops,
	))

	properties.Property("restore reproduces the snapshot", prop.ForAll(
		func(seq []int) bool {
			b := NewBuilder(DefaultMenu())
			for _, op := range seq {
				apply(b, op)
			}
			s := b.State()
			r, err := RestoreBuilder(DefaultMenu(), s.Ingredients, s.Purchasing)
			if err != nil {
				return false
			}
			rs := r.State()
			return rs.TotalPrice.Equal(s.TotalPrice) && rs.Purchasing == s.Purchasing && rs.Purchasable == s.Purchasable
		},
		ops,
	))

	properties.TestingRun(t)
}
