// Package analysis exports charts and correlation tables from a strategy's history.
package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"stratopt-go/internal/artifact"
	"stratopt-go/internal/perf"
)

// MinRows is the history length below which Export does nothing.
const MinRows = 5

// Exporter renders analysis artifacts into a sink.
type Exporter struct {
	sink   artifact.Sink
	width  vg.Length
	height vg.Length
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithSize overrides the chart dimensions.
func WithSize(width, height vg.Length) Option {
	return func(e *Exporter) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// NewExporter returns an exporter writing to sink.
func NewExporter(sink artifact.Sink, opts ...Option) *Exporter {
	e := &Exporter{sink: sink, width: 6 * vg.Inch, height: 4 * vg.Inch}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes one scatter chart per parameter against total return, plus the
// correlation matrix as CSV and heatmap. Each artifact is attempted independently;
// the returned error joins every failure.
func (e *Exporter) Export(ctx context.Context, name string, rows []perf.Observation) (err error) {
	if len(rows) < MinRows {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, fmt.Errorf("analysis: %s: panic: %v", name, r))
		}
	}()

	var errs []error
	for _, param := range perf.ParamKeys {
		data, err := e.scatter(name, param, rows)
		if err == nil {
			err = e.sink.Write(ctx, ScatterName(name, param), data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("analysis: scatter %s: %w", param, err))
		}
	}

	cols, matrix := CorrelationMatrix(rows)
	if err := e.sink.Write(ctx, CorrelationName(name, "csv"), correlationCSV(cols, matrix)); err != nil {
		errs = append(errs, fmt.Errorf("analysis: correlation csv: %w", err))
	}
	data, err := e.heatmap(name, cols, matrix)
	if err == nil {
		err = e.sink.Write(ctx, CorrelationName(name, "png"), data)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("analysis: correlation heatmap: %w", err))
	}
	return errors.Join(errs...)
}

// ScatterName is the artifact name of a parameter-vs-return chart.
func ScatterName(name, param string) string {
	return fmt.Sprintf("%s_%s_vs_return.png", name, param)
}

// CorrelationName is the artifact name of the correlation matrix in the given format.
func CorrelationName(name, ext string) string {
	return fmt.Sprintf("%s_correlation.%s", name, ext)
}

func (e *Exporter) scatter(name, param string, rows []perf.Observation) ([]byte, error) {
	idx := len(perf.MetricKeys)
	for i, key := range perf.ParamKeys {
		if key == param {
			idx += i
		}
	}
	pts := make(plotter.XYs, len(rows))
	for i, obs := range rows {
		vals := obs.Values()
		pts[i].X = vals[idx]
		pts[i].Y = obs.TotalReturnPct
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s vs total return", name, param)
	p.X.Label.Text = param
	p.Y.Label.Text = perf.KeyTotalReturnPct
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(s)
	return e.encode(p)
}

func (e *Exporter) heatmap(name string, cols []string, matrix [][]float64) ([]byte, error) {
	if len(matrix) == 0 {
		return nil, errors.New("empty correlation matrix")
	}
	hm := plotter.NewHeatMap(grid(matrix), palette.Heat(16, 1))
	hm.Min, hm.Max = -1, 1

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: correlation matrix", name)
	p.Add(hm)

	ticks := make([]plot.Tick, len(cols))
	for i, c := range cols {
		ticks[i] = plot.Tick{Value: float64(i), Label: c}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = 0.8
	return e.encode(p)
}

func (e *Exporter) encode(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(e.width, e.height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func correlationCSV(cols []string, matrix [][]float64) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(append([]string{""}, cols...))
	for i, row := range matrix {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, cols[i])
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'f', 4, 64))
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}

// grid adapts a square matrix to plotter.GridXYZ.
type grid [][]float64

func (g grid) Dims() (c, r int)   { return len(g), len(g) }
func (g grid) Z(c, r int) float64 { return g[r][c] }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }
