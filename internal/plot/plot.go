// Package plot renders experiments as PNG images, one chart panel per metric.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/simbacat/simbacat/internal/dataset"
)

var (
	// ErrInvalidPlot is returned for panel numbers outside 1..len(metrics).
	ErrInvalidPlot = errors.New("invalid plot number")
	// ErrNotSwept is returned when a sweep value is requested from an
	// experiment without a sweep.
	ErrNotSwept = errors.New("experiment has no sweep column")
	// ErrNoData is returned when a panel has no plottable value.
	ErrNoData = errors.New("no values to plot")
)

const (
	runAlpha      = 64 // 25 % opacity
	captionHeight = 24
)

// Options control what is drawn and how it is labelled.
type Options struct {
	// Plots selects metric panels, numbered from 1. Empty means all metrics.
	Plots []int
	// Value restricts a swept experiment to the runs of one sweep value.
	Value *float64

	TimeUnit string
	// Titles and Units are indexed by metric. Missing entries fall back to
	// the metric name.
	Titles []string
	Units  []string

	PanelWidth  int
	PanelHeight int

	// Caption is printed above the panels when set.
	Caption string
}

func (o Options) size() (int, int) {
	w, h := o.PanelWidth, o.PanelHeight
	if w <= 0 {
		w = 500
	}
	if h <= 0 {
		h = 500
	}
	return w, h
}

// Render draws the selected metrics of exp side by side.
//
// A swept experiment gets one mean line per sweep value. Otherwise, or when
// opts.Value picks a single group, every run is drawn faintly together with
// the cross-run mean and the representative run.
func Render(exp *dataset.Experiment, opts Options) (image.Image, error) {
	metrics, err := selectPlots(opts.Plots, len(exp.Metrics))
	if err != nil {
		return nil, err
	}

	var groups []dataset.Group
	sweep := false
	switch {
	case opts.Value != nil:
		if !exp.Swept() {
			return nil, ErrNotSwept
		}
		g, err := exp.Group(*opts.Value)
		if err != nil {
			return nil, err
		}
		groups = []dataset.Group{g}
	case exp.Swept():
		groups = exp.Groups
		sweep = true
	default:
		groups = exp.Groups
	}
	if len(groups) == 0 {
		return nil, ErrNoData
	}

	w, h := opts.size()
	panels := make([]image.Image, 0, len(metrics))
	for _, m := range metrics {
		var series []chart.Series
		if sweep {
			series = sweepSeries(groups, m)
		} else {
			series = runSeries(groups[0], m)
		}
		p := panel{
			title:  label(opts.Titles, m, exp.Metrics[m]),
			xName:  opts.TimeUnit,
			yName:  label(opts.Units, m, exp.Metrics[m]),
			series: series,
			width:  w,
			height: h,
		}
		img, err := p.render()
		if err != nil {
			return nil, fmt.Errorf("plot %q: %w", exp.Metrics[m], err)
		}
		panels = append(panels, img)
	}
	return compose(panels, opts.Caption), nil
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WriteFile renders exp and writes the PNG to path.
func WriteFile(path string, exp *dataset.Experiment, opts Options) (err error) {
	img, err := Render(exp, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Encode(f, img)
}

// selectPlots converts 1-based panel numbers to metric indices.
func selectPlots(plots []int, metrics int) ([]int, error) {
	if len(plots) == 0 {
		out := make([]int, metrics)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, 0, len(plots))
	for _, p := range plots {
		if p < 1 || p > metrics {
			return nil, fmt.Errorf("%w %d: metrics are numbered 1 to %d", ErrInvalidPlot, p, metrics)
		}
		out = append(out, p-1)
	}
	return out, nil
}

func runSeries(g dataset.Group, metric int) []chart.Series {
	var out []chart.Series
	for k, r := range g.Runs {
		s, ok := line("", r.Series(metric), chart.GetDefaultColor(k).WithAlpha(runAlpha))
		if ok {
			out = append(out, s)
		}
	}
	if mean, ok := line("Mean", dataset.MeanSeries(g, metric), drawing.ColorBlack); ok {
		mean.Style.StrokeWidth = 2
		mean.Style.StrokeDashArray = []float64{6, 4}
		out = append(out, mean)
	}
	if r, ok := g.RepresentativeRun(); ok {
		if rep, ok := line("Representative", r.Series(metric), drawing.ColorBlack); ok {
			rep.Style.StrokeWidth = 2
			out = append(out, rep)
		}
	}
	return out
}

func sweepSeries(groups []dataset.Group, metric int) []chart.Series {
	var out []chart.Series
	for i, g := range groups {
		s, ok := line(valueLabel(g.Value), dataset.MeanSeries(g, metric), chart.GetDefaultColor(i))
		if ok {
			s.Style.StrokeWidth = 2
			out = append(out, s)
		}
	}
	return out
}

// line builds a series over tick indices, dropping missing values.
func line(name string, ys []float64, col drawing.Color) (chart.ContinuousSeries, bool) {
	s := chart.ContinuousSeries{
		Name:  name,
		Style: chart.Style{StrokeColor: col, StrokeWidth: 1},
	}
	for t, y := range ys {
		if dataset.IsMissing(y) {
			continue
		}
		s.XValues = append(s.XValues, float64(t))
		s.YValues = append(s.YValues, y)
	}
	return s, len(s.XValues) > 0
}

// valueLabel names a sweep value rounded to three decimals.
func valueLabel(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func label(xs []string, i int, fallback string) string {
	if i < len(xs) && xs[i] != "" {
		return xs[i]
	}
	return fallback
}

type panel struct {
	title, xName, yName string
	series              []chart.Series
	width, height       int
}

func (p panel) render() (image.Image, error) {
	if len(p.series) == 0 {
		return nil, ErrNoData
	}
	xr, yr := bounds(p.series)

	ch := chart.Chart{
		Title:      p.title,
		Width:      p.width,
		Height:     p.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: p.xName, Range: xr},
		YAxis:      chart.YAxis{Name: p.yName, Range: yr},
		Series:     p.series,
	}

	// Unnamed run lines stay out of the legend.
	named := ch
	named.Series = nil
	for _, s := range p.series {
		if s.GetName() != "" {
			named.Series = append(named.Series, s)
		}
	}
	if len(named.Series) > 0 {
		ch.Elements = []chart.Renderable{chart.Legend(&named)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

// bounds computes explicit axis ranges so flat or single-tick series still
// have a non-zero extent.
func bounds(series []chart.Series) (*chart.ContinuousRange, *chart.ContinuousRange) {
	xmax := 0.0
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		cs, ok := s.(chart.ContinuousSeries)
		if !ok {
			continue
		}
		for i, x := range cs.XValues {
			xmax = math.Max(xmax, x)
			ymin = math.Min(ymin, cs.YValues[i])
			ymax = math.Max(ymax, cs.YValues[i])
		}
	}
	if xmax == 0 {
		xmax = 1
	}
	if ymin == ymax {
		pad := math.Max(math.Abs(ymin)*0.05, 1)
		ymin -= pad
		ymax += pad
	}
	return &chart.ContinuousRange{Min: 0, Max: xmax}, &chart.ContinuousRange{Min: ymin, Max: ymax}
}

// compose places panels left to right below an optional caption strip.
func compose(panels []image.Image, caption string) image.Image {
	top := 0
	if caption != "" {
		top = captionHeight
	}
	width, height := 0, 0
	for _, p := range panels {
		width += p.Bounds().Dx()
		height = max(height, p.Bounds().Dy())
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height+top))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x := 0
	for _, p := range panels {
		b := p.Bounds()
		dst := image.Rect(x, top, x+b.Dx(), top+b.Dy())
		draw.Draw(canvas, dst, p, b.Min, draw.Src)
		x += b.Dx()
	}

	if caption != "" {
		face := basicfont.Face7x13
		d := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.Black), Face: face}
		tw := d.MeasureString(caption).Ceil()
		d.Dot = fixed.Point26_6{
			X: fixed.I(max((width-tw)/2, 4)),
			Y: fixed.I((captionHeight + face.Metrics().Ascent.Ceil()) / 2),
		}
		d.DrawString(caption)
	}
	return canvas
}
