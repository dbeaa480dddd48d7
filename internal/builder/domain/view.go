package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	BreadTop    = "bread-top"
	BreadBottom = "bread-bottom"

	EmptyBurgerPlaceholder = "Please start adding ingredients"
	CheckoutPrompt         = "Continue to checkout?"
)

type Layer struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// BurgerView lists the layers top to bottom. Placeholder is set, and no
// ingredient layers appear, when the burger has no ingredients.
type BurgerView struct {
	Layers      []Layer `json:"layers"`
	Placeholder string  `json:"placeholder,omitempty"`
}

func RenderBurger(menu *Menu, counts Counts) BurgerView {
	layers := []Layer{{Key: BreadTop, Type: BreadTop}}
	filling := 0
	for _, item := range menu.items {
		for i := 0; i < counts[item.Ingredient]; i++ {
			layers = append(layers, Layer{
				Key:  string(item.Ingredient) + strconv.Itoa(i),
				Type: string(item.Ingredient),
			})
			filling++
		}
	}
	layers = append(layers, Layer{Key: BreadBottom, Type: BreadBottom})

	v := BurgerView{Layers: layers}
	if filling == 0 {
		v.Placeholder = EmptyBurgerPlaceholder
	}
	return v
}

type Control struct {
	Ingredient     Ingredient `json:"ingredient"`
	Label          string     `json:"label"`
	Count          int        `json:"count"`
	RemoveDisabled bool       `json:"remove_disabled"`
}

type ControlPanel struct {
	Price         string    `json:"price"`
	Controls      []Control `json:"controls"`
	OrderDisabled bool      `json:"order_disabled"`
}

func RenderControls(menu *Menu, s OrderState) ControlPanel {
	controls := make([]Control, 0, len(menu.items))
	for _, item := range menu.items {
		n := s.Ingredients[item.Ingredient]
		controls = append(controls, Control{
			Ingredient:     item.Ingredient,
			Label:          item.Label,
			Count:          n,
			RemoveDisabled: n <= 0,
		})
	}
	return ControlPanel{
		Price:         FormatPrice(s.TotalPrice),
		Controls:      controls,
		OrderDisabled: !s.Purchasable,
	}
}

type SummaryLine struct {
	Ingredient Ingredient `json:"ingredient"`
	Label      string     `json:"label"`
	Count      int        `json:"count"`
}

// OrderSummary is the content of the confirmation modal.
type OrderSummary struct {
	Lines  []SummaryLine `json:"lines"`
	Total  string        `json:"total"`
	Prompt string        `json:"prompt"`
}

func RenderSummary(menu *Menu, s OrderState) OrderSummary {
	lines := make([]SummaryLine, 0, len(menu.items))
	for _, item := range menu.items {
		lines = append(lines, SummaryLine{
			Ingredient: item.Ingredient,
			Label:      item.Label,
			Count:      s.Ingredients[item.Ingredient],
		})
	}
	return OrderSummary{Lines: lines, Total: FormatPrice(s.TotalPrice), Prompt: CheckoutPrompt}
}

type View struct {
	State        OrderState   `json:"state"`
	Burger       BurgerView   `json:"burger"`
	Controls     ControlPanel `json:"controls"`
	Summary      OrderSummary `json:"summary"`
	ModalVisible bool         `json:"modal_visible"`
}

func Render(menu *Menu, s OrderState) View {
	return View{
		State:        s,
		Burger:       RenderBurger(menu, s.Ingredients),
		Controls:     RenderControls(menu, s),
		Summary:      RenderSummary(menu, s),
		ModalVisible: s.Purchasing,
	}
}

func FormatPrice(d decimal.Decimal) string { return d.StringFixed(2) }
