package categorize

import "strings"

// FallbackEmoji decorates purposes missing from the catalog.
const FallbackEmoji = "📝"

// Category is one purpose the operator can pick.
type Category struct {
	Name  string `mapstructure:"name"`
	Label string `mapstructure:"label"`
	Emoji string `mapstructure:"emoji"`
}

// DefaultCategories is the stock purpose set.
func DefaultCategories() []Category {
	return []Category{
		{Name: "food", Label: "Food", Emoji: "🍔"},
		{Name: "transport", Label: "Transport", Emoji: "🚗"},
		{Name: "shopping", Label: "Shopping", Emoji: "🛍️"},
		{Name: "other", Label: "Other", Emoji: "📝"},
	}
}

// Catalog is an ordered set of categories.
type Catalog struct {
	categories []Category
	byName     map[string]Category
}

// NewCatalog indexes categories; an empty list falls back to the defaults.
func NewCatalog(categories []Category) *Catalog {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byName:     make(map[string]Category, len(categories)),
	}
	for _, cat := range categories {
		name := strings.ToLower(strings.TrimSpace(cat.Name))
		if name == "" {
			continue
		}
		if _, dup := c.byName[name]; dup {
			continue
		}
		cat.Name = name
		if cat.Label == "" {
			cat.Label = strings.ToUpper(name[:1]) + name[1:]
		}
		c.categories = append(c.categories, cat)
		c.byName[name] = cat
	}
	return c
}

// Categories returns the categories in configured order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Emoji returns the emoji for a purpose, FallbackEmoji when unknown.
func (c *Catalog) Emoji(purpose string) string {
	if cat, ok := c.byName[purpose]; ok && cat.Emoji != "" {
		return cat.Emoji
	}
	return FallbackEmoji
}

// ButtonLabel is the option text shown for a category.
func (c Category) ButtonLabel() string {
	if c.Emoji == "" {
		return c.Label
	}
	return c.Label + " " + c.Emoji
}
