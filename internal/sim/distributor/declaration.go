package distributor

import "github.com/yesC48/CyberIO/internal/sim/model"

type Kind int

const (
	KindItems Kind = iota + 1
	KindDynamic
	KindFilter
)

func (k Kind) String() string {
	switch k {
	case KindItems:
		return "items"
	case KindDynamic:
		return "dynamic"
	case KindFilter:
		return "filter"
	}
	return "none"
}

func ParseKind(v string) (Kind, bool) {
	switch v {
	case "items":
		return KindItems, true
	case "dynamic":
		return KindDynamic, true
	case "filter":
		return KindFilter, true
	}
	return 0, false
}

// Declaration is what an adjacent consumer says it eats: a fixed list, a
// list that changes at runtime, or a predicate over every item type.
type Declaration struct {
	Kind    Kind
	Items   []model.ItemStack
	Dynamic func() []model.ItemStack
	Filter  func(item string) bool
}

// Stacks resolves the item list of the list variants.
func (d Declaration) Stacks() []model.ItemStack {
	switch d.Kind {
	case KindItems:
		return d.Items
	case KindDynamic:
		if d.Dynamic == nil {
			return nil
		}
		return d.Dynamic()
	}
	return nil
}

func (d Declaration) Accepts(item string) bool {
	if d.Kind == KindFilter {
		return d.Filter != nil && d.Filter(item)
	}
	for _, st := range d.Stacks() {
		if st.Item == item {
			return true
		}
	}
	return false
}

// Wanted lists the item types declared, in declaration order. The filter
// variant is evaluated against universe.
func (d Declaration) Wanted(universe []string) []string {
	var out []string
	if d.Kind == KindFilter {
		if d.Filter == nil {
			return nil
		}
		for _, item := range universe {
			if d.Filter(item) {
				out = append(out, item)
			}
		}
		return out
	}
	for _, st := range d.Stacks() {
		if st.Item != "" {
			out = append(out, st.Item)
		}
	}
	return out
}
