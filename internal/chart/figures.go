package chart

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"studiocharts/internal/core"
)

// Scatter theme.
const (
	paperColor  = "#2d2d2d"
	plotColor   = "#1a1a1a"
	accentColor = "#ffd700"
	gridColor   = "#444444"
	axisColor   = "#e0e0e0"

	ScatterWidth  = 1600
	ScatterHeight = 680
)

// Bar theme.
const (
	barColor     = "#32746D"
	barLineColor = "#104F55"
)

// Marker sizing shared by the static and animated scatter.
const (
	markerSizeMode = "area"
	markerSizeRef  = 0.5
)

// Colors maps a studio to its trace colour.
type Colors map[string]color.RGBA

// StudioColors spreads the rainbow over the sorted studio list. Colours are
// keyed by position in the full list so a filtered view keeps them.
func StudioColors(studios []string) Colors {
	out := make(Colors, len(studios))
	for i, c := range Palette(len(studios)) {
		out[studios[i]] = c
	}
	return out
}

// HoverText is the tooltip of one title.
func HoverText(p core.TimeSeriesPoint) string {
	return fmt.Sprintf("<b>%s</b><br>Año: %d<br>Recaudación: %s millones USD<br>Director: %s",
		p.Label, p.Year, strconv.FormatFloat(p.Value, 'f', -1, 64), p.Director)
}

// ToneFrequency is the pitch, in Hz, announcing a revealed point.
func ToneFrequency(p core.TimeSeriesPoint) float64 {
	return 200 + p.Size()*10
}

// ScatterLayout is the dark themed layout of the release timeline. The x
// range pads the year span by one on each side; pass lo > hi for an empty
// dataset to leave it automatic.
func ScatterLayout(lo, hi int) Layout {
	titleFont := &Font{Color: accentColor, Size: 18}
	x := &Axis{
		Title:         &Title{Text: "Año de estreno", Font: titleFont},
		GridColor:     gridColor,
		Color:         axisColor,
		ZeroLineColor: gridColor,
	}
	if lo <= hi {
		x.Range = []float64{float64(lo - 1), float64(hi + 1)}
	}
	return Layout{
		XAxis: x,
		YAxis: &Axis{
			Title:         &Title{Text: "Recaudación mundial (Millones USD)", Font: titleFont},
			Type:          "log",
			GridColor:     gridColor,
			Color:         axisColor,
			ZeroLineColor: gridColor,
			Range:         []float64{1, 3.7},
			TickVals:      []float64{1, 2, 3},
			TickText:      []string{"10M", "100M", "1000M"},
		},
		Legend: &Legend{
			Orientation: "h",
			Font:        &Font{Color: accentColor, Size: 12},
			X:           0.5,
			Y:           -0.2,
			XAnchor:     "center",
			YAnchor:     "top",
			BGColor:     paperColor,
			BorderColor: accentColor,
			BorderWidth: 2,
			TraceOrder:  "normal",
		},
		PaperBGColor: paperColor,
		PlotBGColor:  plotColor,
		Width:        ScatterWidth,
		Height:       ScatterHeight,
		AutoSize:     boolPtr(false),
		Margin:       &Margin{L: 70, R: 70, T: 20, B: 150},
		HoverLabel: &HoverLabel{
			Font:        &Font{Color: axisColor},
			BGColor:     paperColor,
			BorderColor: accentColor,
		},
	}
}

// EmptyTrace is a studio trace with no points yet, as created at the start
// of an animation.
func EmptyTrace(studio string, c color.RGBA) Trace {
	return Trace{
		Type:          "scatter",
		Mode:          "markers",
		Name:          studio,
		X:             []any{},
		Y:             []any{},
		HoverTemplate: "%{text}<extra></extra>",
		Marker: &Marker{
			Color:    CSS(c),
			Size:     []Number{},
			SizeMode: markerSizeMode,
			SizeRef:  markerSizeRef,
		},
	}
}

// StudioTrace is the full trace of one series.
func StudioTrace(s core.Series, c color.RGBA) Trace {
	t := EmptyTrace(s.Category, c)
	t.X = make([]any, len(s.Points))
	t.Y = make([]any, len(s.Points))
	t.Text = make([]string, len(s.Points))
	t.Marker.Size = make([]Number, len(s.Points))
	for i, p := range s.Points {
		t.X[i] = p.Year
		t.Y[i] = Number(p.Value)
		t.Text[i] = HoverText(p)
		t.Marker.Size[i] = Number(p.Size())
	}
	return t
}

// ScatterFigure is the static release timeline, every point visible.
func ScatterFigure(series []core.Series, colors Colors, lo, hi int) Figure {
	f := Figure{Data: make([]Trace, len(series)), Layout: ScatterLayout(lo, hi)}
	for i, s := range series {
		f.Data[i] = StudioTrace(s, colors[s.Category])
	}
	return f
}

// BarFigure is the horizontal ranking of top. Only the highest and lowest
// bars carry a value label.
func BarFigure(top core.RankedTopN) Figure {
	x := make([]any, len(top))
	y := make([]any, len(top))
	for i, e := range top {
		x[i] = Number(e.Total)
		y[i] = e.Category
	}
	return Figure{
		Data: []Trace{{
			Type:         "bar",
			Orientation:  "h",
			X:            x,
			Y:            y,
			Text:         ExtremeLabels(top.Totals()),
			TextPosition: "inside",
			TextFont:     &Font{Color: "white", Size: 14},
			HoverInfo:    "skip",
			Marker: &Marker{
				Color: barColor,
				Line:  &Line{Color: barLineColor, Width: 1.5},
			},
		}},
		Layout: Layout{
			XAxis: &Axis{
				Title:      &Title{Text: "Ganancias Totales (USD)"},
				ShowGrid:   boolPtr(true),
				GridColor:  "lightgray",
				ZeroLine:   boolPtr(false),
				AutoMargin: true,
			},
			YAxis: &Axis{
				CategoryOrder: "total ascending",
				ShowGrid:      boolPtr(false),
				ZeroLine:      boolPtr(false),
				AutoMargin:    true,
			},
			Margin:     &Margin{L: 150, R: 20, T: 40, B: 80},
			ShowLegend: boolPtr(false),
		},
	}
}

// ExtremeLabels returns "$<amount>" at the first maximum and first minimum
// of values and "" elsewhere. Non-finite values never qualify.
func ExtremeLabels(values []float64) []string {
	out := make([]string, len(values))
	hi, lo := -1, -1
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if hi < 0 || v > values[hi] {
			hi = i
		}
		if lo < 0 || v < values[lo] {
			lo = i
		}
	}
	if hi >= 0 {
		out[hi] = FormatUSD(values[hi])
		out[lo] = FormatUSD(values[lo])
	}
	return out
}

var printer = message.NewPrinter(language.English)

// FormatUSD renders v with thousands separators and at most three decimals.
func FormatUSD(v float64) string {
	return "$" + printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// BubbleTitle and the axis titles of the brand bubble chart.
const (
	BubbleTitle  = "Top 10 Productoras: Estrenos vs. Ganancias"
	bubbleXTitle = "Número de Estrenos"
	bubbleYTitle = "Ganancias de la Película más Taquillera (Millones)"
)

// BubbleFigure plots releases against the best title's gross, one bubble per
// brand sized by total earnings.
func BubbleFigure(rows []core.BrandRow) Figure {
	x := make([]any, len(rows))
	y := make([]any, len(rows))
	sizes := make([]Number, len(rows))
	shades := make([]Number, len(rows))
	notes := make([]Annotation, len(rows))
	for i, r := range rows {
		x[i] = Number(r.Releases)
		y[i] = Number(r.LifetimeGross / 1e6)
		sizes[i] = Number(BubbleSize(r.Total))
		shades[i] = Number(r.Releases)
		notes[i] = Annotation{
			X:         Number(r.Releases),
			Y:         Number(r.LifetimeGross / 1e6),
			Text:      BubbleLabel(r),
			XAnchor:   "left",
			YAnchor:   "middle",
			ShowArrow: true,
			ArrowHead: 2,
			AX:        20,
			AY:        -30,
			Font:      &Font{Color: "black", Size: 12},
		}
	}
	gridOn := boolPtr(true)
	return Figure{
		Data: []Trace{{
			Type:       "scatter",
			Mode:       "markers",
			X:          x,
			Y:          y,
			HoverInfo:  "skip",
			ShowLegend: boolPtr(false),
			Marker: &Marker{
				Size:       sizes,
				Color:      shades,
				ColorScale: "Viridis",
				ShowScale:  true,
			},
		}},
		Layout: Layout{
			Title: &Title{Text: BubbleTitle},
			XAxis: &Axis{
				Title:     &Title{Text: bubbleXTitle},
				ShowGrid:  gridOn,
				GridColor: "rgba(200, 200, 200, 0.5)",
				ZeroLine:  boolPtr(false),
			},
			YAxis: &Axis{
				Title:     &Title{Text: bubbleYTitle},
				ShowGrid:  gridOn,
				GridColor: "rgba(200, 200, 200, 0.5)",
				ZeroLine:  boolPtr(false),
			},
			Margin:      &Margin{L: 100, R: 20, T: 50, B: 100},
			Annotations: notes,
			ShowLegend:  boolPtr(false),
		},
	}
}

// BubbleSize maps a total in USD to a marker diameter: ten per billion.
func BubbleSize(total float64) float64 {
	return total / 1e9 * 10
}

// BubbleLabel is "<brand><br>$<billions>B" with two decimals.
func BubbleLabel(r core.BrandRow) string {
	return fmt.Sprintf("%s<br>$%.2fB", r.Brand, r.Total/1e9)
}
