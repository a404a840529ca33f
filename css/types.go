package css

import (
	"strings"
)

// Value is a single parsed property value.
type Value struct {
	Raw     string  // value as written, whitespace normalized
	Value   float64 // numeric part for numbers, dimensions and percentages
	Unit    string  // "px", "em", "%", "pt"... empty for plain numbers
	Keyword string  // identifiers and everything not numeric
}

// IsNumeric reports whether value carries a number.
func (v Value) IsNumeric() bool {
	return len(v.Keyword) == 0 && len(v.Raw) > 0
}

// ToPixels converts length to layout units. Relative units are taken against
// base (current font size), percentages against ref. Second result is false
// when value is not a length.
func (v Value) ToPixels(base, ref float64) (float64, bool) {
	if !v.IsNumeric() {
		return 0, false
	}
	switch strings.ToLower(v.Unit) {
	case "", "px":
		return v.Value, true
	case "pt":
		return v.Value * 96 / 72, true
	case "pc":
		return v.Value * 16, true
	case "in":
		return v.Value * 96, true
	case "cm":
		return v.Value * 96 / 2.54, true
	case "mm":
		return v.Value * 96 / 25.4, true
	case "em", "rem":
		return v.Value * base, true
	case "ex":
		return v.Value * base / 2, true
	case "%":
		return v.Value * ref / 100, true
	}
	return 0, false
}

// fontSizeKeywords maps absolute size keywords to a factor of medium size.
var fontSizeKeywords = map[string]float64{
	"xx-small": 0.6,
	"x-small":  0.75,
	"small":    0.89,
	"medium":   1.0,
	"large":    1.2,
	"x-large":  1.5,
	"xx-large": 2.0,
	"smaller":  0.83,
	"larger":   1.2,
}

// FontSize computes font size this value requests given parent and default
// sizes. Second result is false when value is not understood.
func (v Value) FontSize(parent, medium float64) (float64, bool) {
	if f, ok := fontSizeKeywords[v.Keyword]; ok {
		switch v.Keyword {
		case "smaller", "larger":
			return parent * f, true
		}
		return medium * f, true
	}
	if v.IsNumeric() && v.Unit == "" {
		// unitless font-size is invalid CSS, but common in the wild
		return v.Value, v.Value > 0
	}
	size, ok := v.ToPixels(parent, parent)
	return size, ok && size > 0
}

// IsBold reports whether font-weight value selects a bold face.
func (v Value) IsBold() bool {
	switch v.Keyword {
	case "bold", "bolder":
		return true
	case "":
		return v.Value >= 600
	}
	return false
}
