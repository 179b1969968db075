package render

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/newthinker/chartgen/internal/core"
)

const (
	defaultWidthPx  = 1200
	defaultHeightPx = 800
)

// EChartsConfig sizes the figure and points at the echarts JS assets.
type EChartsConfig struct {
	Width      int
	Height     int
	AssetsHost string // empty uses the go-echarts default CDN
}

// ECharts renders a go-echarts page and rasterizes it to PNG.
type ECharts struct {
	width      int
	height     int
	assetsHost string
	raster     Rasterizer
}

// NewECharts creates an ECharts renderer backed by raster.
func NewECharts(cfg EChartsConfig, raster Rasterizer) *ECharts {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidthPx
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeightPx
	}
	return &ECharts{
		width:      cfg.Width,
		height:     cfg.Height,
		assetsHost: cfg.AssetsHost,
		raster:     raster,
	}
}

// Render implements Renderer.
func (e *ECharts) Render(ctx context.Context, in Input) ([]byte, error) {
	html, err := e.BuildHTML(in)
	if err != nil {
		return nil, err
	}
	png, err := e.raster.Rasterize(ctx, html, e.width, e.height)
	if err != nil {
		return nil, core.WrapError(core.ErrRenderFailed, fmt.Errorf("rasterizing %s: %w", in.Symbol, err))
	}
	return png, nil
}

// BuildHTML lays out the price panel (candles + SMA overlays) above the
// volume panel and returns the page HTML.
func (e *ECharts) BuildHTML(in Input) ([]byte, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	volumeHeight := int(math.Round(float64(e.height) * in.Style.VolumeRatio))
	priceHeight := e.height - volumeHeight

	xAxis := buildXAxis(in.History)
	kline := e.buildPricePanel(in, xAxis, priceHeight)
	volume := e.buildVolumePanel(in, xAxis, volumeHeight)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = in.Title
	if e.assetsHost != "" {
		page.AssetsHost = e.assetsHost
	}
	page.AddCharts(kline, volume)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, core.WrapError(core.ErrRenderFailed, fmt.Errorf("rendering page for %s: %w", in.Symbol, err))
	}
	return buf.Bytes(), nil
}

func (e *ECharts) init(height int, background string) opts.Initialization {
	init := opts.Initialization{
		Width:           fmt.Sprintf("%dpx", e.width),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: background,
	}
	if e.assetsHost != "" {
		init.AssetsHost = e.assetsHost
	}
	return init
}

func (e *ECharts) buildPricePanel(in Input, xAxis []string, height int) *charts.Kline {
	st := in.Style
	minPrice, maxPrice := priceBounds(in.History)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(e.init(height, st.Background)),
		charts.WithTitleOpts(opts.Title{
			Title:      in.Title,
			Left:       "center",
			TitleStyle: &opts.TextStyle{Color: st.Text, FontSize: 13},
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:      opts.Bool(true),
			Left:      "left",
			Top:       "30",
			TextStyle: &opts.TextStyle{Color: st.Text, FontSize: 9},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: st.Text},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: st.Grid, Type: st.GridType}},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      in.YLabel,
			Position:  st.yPosition(),
			Scale:     opts.Bool(true),
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			AxisLabel: &opts.AxisLabel{Color: st.Text},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: st.Grid, Type: st.GridType}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        st.Up,
			Color0:       st.Down,
			BorderColor:  st.upBorder(),
			BorderColor0: st.downBorder(),
		}),
	)

	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", buildKlineSeries(in.History))

	sma := charts.NewLine()
	sma.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	sma.SetXAxis(xAxis)
	sma.AddSeries(st.SMA10Label, toLineData(in.Overlays.SMA10),
		charts.WithLineStyleOpts(opts.LineStyle{Color: st.SMA10Color, Width: st.LineWidth}))
	sma.AddSeries(st.SMA20Label, toLineData(in.Overlays.SMA20),
		charts.WithLineStyleOpts(opts.LineStyle{Color: st.SMA20Color, Width: st.LineWidth}))
	kline.Overlap(sma)

	return kline
}

func (e *ECharts) buildVolumePanel(in Input, xAxis []string, height int) *charts.Bar {
	st := in.Style

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(e.init(height, st.volumeBackground())),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Volume",
			Position:  st.yPosition(),
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: st.Text},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: st.Grid, Type: st.GridType}},
		}),
	)

	vols := make([]opts.BarData, len(in.History))
	for i, c := range in.History {
		color := st.Down
		if c.Close >= c.Open {
			color = st.Up
		}
		vols[i] = opts.BarData{
			Value:     c.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func buildXAxis(bars []core.OHLCV) []string {
	x := make([]string, len(bars))
	for i, b := range bars {
		x[i] = b.Time.Format("2006-01-02")
	}
	return x
}

// echarts kline order is open, close, low, high
func buildKlineSeries(bars []core.OHLCV) []opts.KlineData {
	data := make([]opts.KlineData, 0, len(bars))
	for _, b := range bars {
		data = append(data, opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}})
	}
	return data
}

// toLineData maps undefined (NaN) entries to gaps.
func toLineData(series []float64) []opts.LineData {
	line := make([]opts.LineData, len(series))
	for i, v := range series {
		if math.IsNaN(v) {
			line[i] = opts.LineData{Value: nil}
			continue
		}
		line[i] = opts.LineData{Value: round(v, 4)}
	}
	return line
}

func priceBounds(bars []core.OHLCV) (minVal, maxVal float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	minVal = bars[0].Low
	maxVal = bars[0].High
	for _, b := range bars {
		if b.Low < minVal {
			minVal = b.Low
		}
		if b.High > maxVal {
			maxVal = b.High
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
