package compiler

import (
	"sort"
	"strings"

	"github.com/jun/gophdeck/internal/model"
)

// DefaultThemeName is used when a request names no theme or an unknown one.
const DefaultThemeName = "default"

var themes = map[string]model.ColorTheme{
	"default": {
		Name:      "default",
		Primary:   model.RGB{R: 0.13, G: 0.13, B: 0.13},
		Secondary: model.RGB{R: 0.38, G: 0.38, B: 0.38},
		Accent:    model.RGB{R: 0.10, G: 0.45, B: 0.91},
	},
	"ocean": {
		Name:      "ocean",
		Primary:   model.RGB{R: 0.04, G: 0.24, B: 0.42},
		Secondary: model.RGB{R: 0.16, G: 0.45, B: 0.60},
		Accent:    model.RGB{R: 0.00, G: 0.62, B: 0.71},
	},
	"forest": {
		Name:      "forest",
		Primary:   model.RGB{R: 0.11, G: 0.30, B: 0.17},
		Secondary: model.RGB{R: 0.33, G: 0.42, B: 0.28},
		Accent:    model.RGB{R: 0.55, G: 0.65, B: 0.16},
	},
	"sunset": {
		Name:      "sunset",
		Primary:   model.RGB{R: 0.55, G: 0.16, B: 0.18},
		Secondary: model.RGB{R: 0.80, G: 0.38, B: 0.20},
		Accent:    model.RGB{R: 0.95, G: 0.61, B: 0.07},
	},
	"monochrome": {
		Name:      "monochrome",
		Primary:   model.RGB{R: 0, G: 0, B: 0},
		Secondary: model.RGB{R: 0.30, G: 0.30, B: 0.30},
		Accent:    model.RGB{R: 0.50, G: 0.50, B: 0.50},
	},
}

// ThemeByName looks up a theme, case-insensitively.
func ThemeByName(name string) (*model.ColorTheme, bool) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &t, true
}

// DefaultTheme returns a copy of the default theme.
func DefaultTheme() *model.ColorTheme {
	t := themes[DefaultThemeName]
	return &t
}

// ThemeNames lists the available theme names in sorted order.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
