// Package chart turns dataset views into charts: Plotly figure documents for
// the browser, PNG renderings for offline use, and the server-sent event sink
// that streams an animation run.
package chart

import (
	"encoding/json"
	"math"
)

// Number is a float that encodes NaN and infinities as JSON null, which
// Plotly renders as a gap.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Numbers converts a float slice, never returning nil.
func Numbers(in []float64) []Number {
	out := make([]Number, len(in))
	for i, v := range in {
		out[i] = Number(v)
	}
	return out
}

// Figure is a Plotly figure document, passed unchanged to Plotly.newPlot.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type          string   `json:"type"`
	Mode          string   `json:"mode,omitempty"`
	Name          string   `json:"name,omitempty"`
	Orientation   string   `json:"orientation,omitempty"`
	X             []any    `json:"x"`
	Y             []any    `json:"y"`
	Text          []string `json:"text,omitempty"`
	TextPosition  string   `json:"textposition,omitempty"`
	TextFont      *Font    `json:"textfont,omitempty"`
	HoverTemplate string   `json:"hovertemplate,omitempty"`
	HoverInfo     string   `json:"hoverinfo,omitempty"`
	ShowLegend    *bool    `json:"showlegend,omitempty"`
	Marker        *Marker  `json:"marker,omitempty"`
}

type Marker struct {
	Color      any      `json:"color,omitempty"`
	Size       []Number `json:"size,omitempty"`
	SizeMode   string   `json:"sizemode,omitempty"`
	SizeRef    float64  `json:"sizeref,omitempty"`
	ColorScale string   `json:"colorscale,omitempty"`
	ShowScale  bool     `json:"showscale,omitempty"`
	Line       *Line    `json:"line,omitempty"`
}

type Line struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Font struct {
	Color string `json:"color,omitempty"`
	Size  int    `json:"size,omitempty"`
}

type Title struct {
	Text string `json:"text"`
	Font *Font  `json:"font,omitempty"`
}

type Axis struct {
	Title         *Title    `json:"title,omitempty"`
	Type          string    `json:"type,omitempty"`
	Range         []float64 `json:"range,omitempty"`
	TickVals      []float64 `json:"tickvals,omitempty"`
	TickText      []string  `json:"ticktext,omitempty"`
	GridColor     string    `json:"gridcolor,omitempty"`
	ZeroLineColor string    `json:"zerolinecolor,omitempty"`
	Color         string    `json:"color,omitempty"`
	ShowGrid      *bool     `json:"showgrid,omitempty"`
	ZeroLine      *bool     `json:"zeroline,omitempty"`
	CategoryOrder string    `json:"categoryorder,omitempty"`
	AutoMargin    bool      `json:"automargin,omitempty"`
}

type Legend struct {
	Orientation string  `json:"orientation,omitempty"`
	Font        *Font   `json:"font,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	XAnchor     string  `json:"xanchor,omitempty"`
	YAnchor     string  `json:"yanchor,omitempty"`
	BGColor     string  `json:"bgcolor,omitempty"`
	BorderColor string  `json:"bordercolor,omitempty"`
	BorderWidth int     `json:"borderwidth,omitempty"`
	TraceOrder  string  `json:"traceorder,omitempty"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type HoverLabel struct {
	Font        *Font  `json:"font,omitempty"`
	BGColor     string `json:"bgcolor,omitempty"`
	BorderColor string `json:"bordercolor,omitempty"`
}

type Annotation struct {
	X         Number `json:"x"`
	Y         Number `json:"y"`
	Text      string `json:"text"`
	XAnchor   string `json:"xanchor,omitempty"`
	YAnchor   string `json:"yanchor,omitempty"`
	ShowArrow bool   `json:"showarrow"`
	ArrowHead int    `json:"arrowhead,omitempty"`
	AX        int    `json:"ax"`
	AY        int    `json:"ay"`
	Font      *Font  `json:"font,omitempty"`
}

type Layout struct {
	Title        *Title       `json:"title,omitempty"`
	XAxis        *Axis        `json:"xaxis,omitempty"`
	YAxis        *Axis        `json:"yaxis,omitempty"`
	Legend       *Legend      `json:"legend,omitempty"`
	PaperBGColor string       `json:"paper_bgcolor,omitempty"`
	PlotBGColor  string       `json:"plot_bgcolor,omitempty"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	AutoSize     *bool        `json:"autosize,omitempty"`
	Margin       *Margin      `json:"margin,omitempty"`
	HoverLabel   *HoverLabel  `json:"hoverlabel,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
	ShowLegend   *bool        `json:"showlegend,omitempty"`
}

func boolPtr(b bool) *bool { return &b }
