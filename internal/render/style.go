package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/chartgen/internal/core"
)

// Style is the immutable look of a chart. Values are copied into each
// render call; nothing is shared between calls.
type Style struct {
	Name string

	Up   string // rising candle body
	Down string // falling candle body
	Edge string // candle border; empty follows body colour
	Wick string // informational, echarts draws wicks with the border colour

	Background  string // price panel
	VolumePanel string // volume panel; empty follows Background
	Grid        string
	GridType    string // "solid", "dashed" or "dotted"
	Text        string

	SMA10Color string
	SMA20Color string
	SMA10Label string
	SMA20Label string
	LineWidth  float32

	VolumeRatio float64 // share of the figure height given to volume
	YOnRight    bool
}

// StyleDark is the charcoal theme: teal/red candles, dotted grid.
func StyleDark() Style {
	return Style{
		Name:        "dark",
		Up:          "#26A69A",
		Down:        "#EF5350",
		Background:  "#1E1E1E",
		Grid:        "#3E3E3E",
		GridType:    "dotted",
		Text:        "#FFFFFF",
		SMA10Color:  "#42A5F5",
		SMA20Color:  "#FF7043",
		SMA10Label:  "10 SMA",
		SMA20Label:  "20 SMA",
		LineWidth:   1,
		VolumeRatio: 0.2,
		YOnRight:    true,
	}
}

// StyleNavy is the deep navy quote-terminal theme with white candle edges.
func StyleNavy() Style {
	return Style{
		Name:        "navy",
		Up:          "#00C853",
		Down:        "#D50000",
		Edge:        "#FFFFFF",
		Wick:        "#FFFFFF",
		Background:  "#000C2E",
		VolumePanel: "#00174F",
		Grid:        "#1C265A",
		GridType:    "solid",
		Text:        "#FFFFFF",
		SMA10Color:  "#FFCC00",
		SMA20Color:  "#FF5252",
		SMA10Label:  "SMA10",
		SMA20Label:  "SMA20",
		LineWidth:   1.2,
		VolumeRatio: 0.25,
		YOnRight:    true,
	}
}

var styles = map[string]func() Style{
	"dark": StyleDark,
	"navy": StyleNavy,
}

// LookupStyle returns the named preset.
func LookupStyle(name string) (Style, error) {
	fn, ok := styles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Style{}, core.WrapError(core.ErrUnknownStyle,
			fmt.Errorf("%q (available: %s)", name, strings.Join(StyleNames(), ", ")))
	}
	return fn(), nil
}

// StyleNames lists preset names, sorted.
func StyleNames() []string {
	names := make([]string, 0, len(styles))
	for name := range styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Style) volumeBackground() string {
	if s.VolumePanel != "" {
		return s.VolumePanel
	}
	return s.Background
}

func (s Style) upBorder() string {
	if s.Edge != "" {
		return s.Edge
	}
	return s.Up
}

func (s Style) downBorder() string {
	if s.Edge != "" {
		return s.Edge
	}
	return s.Down
}

func (s Style) yPosition() string {
	if s.YOnRight {
		return "right"
	}
	return "left"
}
