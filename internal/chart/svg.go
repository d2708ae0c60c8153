package chart

import (
	"html"
	"io"
	"strconv"
	"text/template"
)

var svgTemplate = template.Must(template.New("chart").Funcs(template.FuncMap{
	"esc": html.EscapeString,
}).Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.TotalWidth}}" height="{{.TotalHeight}}" viewBox="0 0 {{.TotalWidth}} {{.TotalHeight}}">
<g class="axis axis--x" transform="translate(0, {{.AxisTop}})">
<line x1="{{.AxisLeft}}" x2="{{.AxisRight}}" y1="0" y2="0" stroke="#000"/>
{{- range .Ticks}}
<g class="tick" transform="translate({{.X}}, 0)"><line y2="-6" stroke="#000"/><text y="-9" text-anchor="middle" font-size="10">{{.Text}}</text></g>
{{- end}}
</g>
<g class="axis axis--y" transform="translate({{.AxisLeft}}, 0)">
<line x1="0" x2="0" y1="{{.AxisTop}}" y2="{{.PlotBottom}}" stroke="#000"/>
{{- range .Bars}}
<text x="-6" y="{{.Mid}}" text-anchor="end" dominant-baseline="middle" font-size="10">{{esc .Label}}</text>
{{- end}}
</g>
{{- range .Bars}}
<rect class="bar" x="{{.X}}" y="{{.Y}}" height="{{.Height}}" width="{{.Width}}" fill="{{$.Color}}"><animate attributeName="width" from="{{.From}}" to="{{.Width}}" dur="{{$.DurationMS}}ms" fill="freeze"/></rect>
{{- end}}
</svg>
`))

type svgTick struct {
	X    int
	Text string
}

type svgBar struct {
	Bar
	Mid int
}

type svgData struct {
	TotalWidth  int
	TotalHeight int
	AxisLeft    int
	AxisRight   int
	AxisTop     int
	PlotBottom  int
	DurationMS  int64
	Color       string
	Ticks       []svgTick
	Bars        []svgBar
}

const tickCount = 5

// WriteSVG renders the current state as an SVG document. Each bar animates
// from its previous width to the new one.
func (c *BarChart) WriteSVG(w io.Writer) error {
	snap := c.Snapshot()
	x := linearScale{d0: 0, d1: snap.DomainMax, r0: axisLeft, r1: float64(snap.Width + rightSlack)}

	data := svgData{
		TotalWidth:  snap.Width + rightSlack + 20,
		TotalHeight: snap.Height + 10,
		AxisLeft:    axisLeft,
		AxisRight:   x.scale(snap.DomainMax),
		AxisTop:     axisTop,
		PlotBottom:  snap.Height,
		DurationMS:  snap.Transition.Milliseconds(),
		Color:       barColor,
	}
	for i := 0; i <= tickCount; i++ {
		v := snap.DomainMax * float64(i) / tickCount
		data.Ticks = append(data.Ticks, svgTick{X: x.scale(v), Text: strconv.FormatFloat(v, 'f', 1, 64)})
	}
	for _, b := range snap.Bars {
		data.Bars = append(data.Bars, svgBar{Bar: b, Mid: b.Y + b.Height/2})
	}
	return svgTemplate.Execute(w, data)
}
