// Package appprefs declares the preferences of the demo application.
package appprefs

import (
	"context"

	"github.com/dshills/typedprefs/internal/prefs"
	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Theme values.
type Theme int32

const (
	ThemeSystem Theme = iota
	ThemeLight
	ThemeDark
)

// String returns the theme name.
func (t Theme) String() string {
	switch t {
	case ThemeSystem:
		return "system"
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "unknown"
	}
}

// Complex is a structured preference value.
type Complex struct {
	Name   string `json:"name" yaml:"name"`
	Number int    `json:"number" yaml:"number"`
	List   []int  `json:"list" yaml:"list"`
}

var (
	// ThemePref selects the UI theme.
	ThemePref = prefs.NewItem("THEME", ThemeSystem).Describe("UI theme: 0 system, 1 light, 2 dark")

	// BooleanSetting is a plain on/off switch.
	BooleanSetting = prefs.NewItem("BOOLEAN_SETTING", true).Describe("demo boolean switch")

	// ComplexSetting is stored as JSON text.
	ComplexSetting = prefs.NewItem("COMPLEX_SETTING", Complex{
		Name:   "Complex ^",
		Number: 10,
		List:   []int{1, 2, 3},
	}).Describe("demo structured value")
)

// All returns the demo preferences in declaration order.
func All() []prefs.Descriptor {
	return []prefs.Descriptor{ThemePref, BooleanSetting, ComplexSetting}
}

// New returns a handler for st with every demo preference registered.
func New(ctx context.Context, st store.Store, opts ...prefs.Option) (*prefs.Handler, error) {
	return prefs.NewWithItems(ctx, st, All(), opts...)
}
