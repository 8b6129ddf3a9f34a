package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"studiocharts/internal/core"
)

// ErrNoData is returned when nothing drawable is left after dropping
// non-finite values.
var ErrNoData = errors.New("no data to render")

// BarPNG renders top as a bar chart. Entries with a non-finite total are
// left out.
func BarPNG(w io.Writer, title string, top core.RankedTopN) error {
	var (
		bars []gochart.Value
		max  float64
	)
	for _, e := range top {
		if !e.Finite() {
			continue
		}
		bars = append(bars, gochart.Value{
			Label: e.Category,
			Value: e.Total,
			Style: gochart.Style{
				FillColor:   drawing.ColorFromHex(barColor[1:]),
				StrokeColor: drawing.ColorFromHex(barLineColor[1:]),
				StrokeWidth: 1.5,
			},
		})
		max = math.Max(max, e.Total)
	}
	if len(bars) == 0 {
		return ErrNoData
	}
	if max <= 0 {
		max = 1
	}

	graph := gochart.BarChart{
		Title:    title,
		Width:    1280,
		Height:   640,
		BarWidth: 60,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40},
		},
		YAxis: gochart.YAxis{
			Range:          &gochart.ContinuousRange{Min: 0, Max: max * 1.1},
			ValueFormatter: billions,
		},
		Bars: bars,
	}
	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

func billions(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("$%.1fB", f/1e9)
	}
	return ""
}

// BubblePNG renders the brand bubble chart. Rows missing any coordinate are
// skipped.
func BubblePNG(w io.Writer, rows []core.BrandRow) error {
	var (
		pts    plotter.XYs
		labels []string
		kept   []core.BrandRow
	)
	for _, r := range rows {
		if !finite(r.Releases) || !finite(r.LifetimeGross) || !finite(r.Total) {
			continue
		}
		pts = append(pts, plotter.XY{X: r.Releases, Y: r.LifetimeGross / 1e6})
		labels = append(labels, fmt.Sprintf("%s $%.2fB", r.Brand, r.Total/1e9))
		kept = append(kept, r)
	}
	if len(pts) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = BubbleTitle
	p.X.Label.Text = bubbleXTitle
	p.Y.Label.Text = bubbleYTitle
	p.Add(plotter.NewGrid())

	shades := moreland.SmoothBlueRed()
	lo, hi := releaseSpan(kept)
	shades.SetMin(lo)
	shades.SetMax(hi)

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("bubble scatter: %w", err)
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := shades.At(kept[i].Releases)
		if err != nil {
			c = color.Black
		}
		return draw.GlyphStyle{
			Color:  c,
			Shape:  draw.CircleGlyph{},
			Radius: vg.Points(math.Max(2, BubbleSize(kept[i].Total)/2)),
		}
	}
	p.Add(sc)

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return fmt.Errorf("bubble labels: %w", err)
	}
	lbl.Offset = vg.Point{X: vg.Points(8), Y: vg.Points(8)}
	p.Add(lbl)

	return writePlot(p, w, 10*vg.Inch, 7*vg.Inch)
}

func releaseSpan(rows []core.BrandRow) (lo, hi float64) {
	lo, hi = rows[0].Releases, rows[0].Releases
	for _, r := range rows[1:] {
		lo = math.Min(lo, r.Releases)
		hi = math.Max(hi, r.Releases)
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// Log axis bounds of the release timeline, in millions.
const (
	scatterYMin = 10
	scatterYMax = 5011.872336272722 // 10^3.7
)

// ScatterPNG renders the full release timeline with one coloured series per
// studio on a log revenue axis.
func ScatterPNG(w io.Writer, series []core.Series, colors Colors, lo, hi int) error {
	p := plot.New()
	p.BackgroundColor = hexColor(paperColor)
	p.X.Label.Text = "Año de estreno"
	p.Y.Label.Text = "Recaudación mundial (Millones USD)"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.ConstantTicks{
		{Value: 10, Label: "10M"},
		{Value: 100, Label: "100M"},
		{Value: 1000, Label: "1000M"},
	}
	styleAxis(&p.X)
	styleAxis(&p.Y)
	p.Legend.Top = true
	p.Legend.TextStyle.Color = hexColor(accentColor)

	grid := plotter.NewGrid()
	grid.Vertical.Color = hexColor(gridColor)
	grid.Horizontal.Color = hexColor(gridColor)
	p.Add(grid)

	drawn := 0
	for _, s := range series {
		var (
			pts   plotter.XYs
			radii []vg.Length
		)
		for _, pt := range s.Points {
			if pt.Value <= 0 || !finite(pt.Value) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(pt.Year), Y: pt.Value})
			radii = append(radii, vg.Points(math.Sqrt(pt.Size()/markerSizeRef)/2))
		}
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("scatter %s: %w", s.Category, err)
		}
		c := colors[s.Category]
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{Color: c, Shape: draw.CircleGlyph{}, Radius: radii[i]}
		}
		p.Add(sc)
		p.Legend.Add(s.Category, sc)
		drawn++
	}
	if drawn == 0 {
		return ErrNoData
	}

	if lo <= hi {
		p.X.Min, p.X.Max = float64(lo-1), float64(hi+1)
	}
	p.Y.Min, p.Y.Max = scatterYMin, scatterYMax

	return writePlot(p, w, ScatterWidth*vg.Inch/96, ScatterHeight*vg.Inch/96)
}

func styleAxis(a *plot.Axis) {
	a.Color = hexColor(axisColor)
	a.Label.TextStyle.Color = hexColor(accentColor)
	a.Tick.Color = hexColor(axisColor)
	a.Tick.Label.Color = hexColor(axisColor)
}

func writePlot(p *plot.Plot, w io.Writer, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("plot writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

func hexColor(s string) color.Color {
	return drawing.ColorFromHex(s[1:])
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
