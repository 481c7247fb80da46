package layout

import "strings"

// PageFormat represents paper dimensions in millimetres.
type PageFormat struct {
	Name   string
	Width  float64
	Height float64
}

// Standard paper sizes.
var (
	A4     = PageFormat{Name: "A4", Width: 210, Height: 297}
	A5     = PageFormat{Name: "A5", Width: 148, Height: 210}
	Letter = PageFormat{Name: "Letter", Width: 215.9, Height: 279.4}
	Legal  = PageFormat{Name: "Legal", Width: 215.9, Height: 355.6}
)

// DefaultMargin is the margin applied on every side when none is configured, in millimetres.
const DefaultMargin = 10.0

var formats = map[string]PageFormat{
	"a4":     A4,
	"a5":     A5,
	"letter": Letter,
	"legal":  Legal,
}

// FormatByName looks up a paper size case-insensitively.
func FormatByName(name string) (PageFormat, bool) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Landscape returns the format rotated by 90 degrees.
func (f PageFormat) Landscape() PageFormat {
	return PageFormat{Name: f.Name, Width: f.Height, Height: f.Width}
}

// Plan is PlanPages for this format.
func (f PageFormat) Plan(contentWidth, contentHeight, margin float64) ([]PageSlice, error) {
	return PlanPages(contentWidth, contentHeight, f.Width, f.Height, margin)
}
