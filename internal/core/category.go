package core

import (
	"errors"
	"fmt"
	"strings"
)

// Category is a named goal type and its default monthly target.
type Category struct {
	Name          string `json:"name" yaml:"name" toml:"name"`
	DefaultTarget int64  `json:"target" yaml:"target" toml:"target"`
}

// CategoryDefaults is the ordered set of known categories. Order drives
// presentation layering only.
type CategoryDefaults []Category

// DefaultCategories returns the stock category table.
func DefaultCategories() CategoryDefaults {
	return CategoryDefaults{
		{Name: "Sites", DefaultTarget: 5},
		{Name: "Delivery", DefaultTarget: 2},
		{Name: "Ecommerce", DefaultTarget: 10},
		{Name: "Tráfego", DefaultTarget: 5},
		{Name: "Celina IA", DefaultTarget: 50},
	}
}

// Names returns the category names in configured order.
func (c CategoryDefaults) Names() []string {
	names := make([]string, len(c))
	for i, cat := range c {
		names[i] = cat.Name
	}
	return names
}

// Target returns the default monthly target for name.
func (c CategoryDefaults) Target(name string) (int64, bool) {
	for _, cat := range c {
		if cat.Name == name {
			return cat.DefaultTarget, true
		}
	}
	return 0, false
}

// TargetOr returns the default target for name, or fallback when unknown.
func (c CategoryDefaults) TargetOr(name string, fallback int64) int64 {
	if t, ok := c.Target(name); ok {
		return t
	}
	return fallback
}

// Validate rejects empty or duplicate names and targets outside
// [0, MaxQuantity]. A zero default target is allowed and produces a flat
// ramp.
func (c CategoryDefaults) Validate() error {
	if len(c) == 0 {
		return errors.New("category table is empty")
	}
	seen := make(map[string]struct{}, len(c))
	for i, cat := range c {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("category %d: empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("category %q: duplicate name", name)
		}
		seen[name] = struct{}{}
		if cat.DefaultTarget < 0 || cat.DefaultTarget > MaxQuantity {
			return fmt.Errorf("category %q: default target %d outside 0..%d", name, cat.DefaultTarget, MaxQuantity)
		}
	}
	return nil
}
