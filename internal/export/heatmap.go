package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// viridis ramp, shared with the web view.
var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// cellGrid adapts a row-major value matrix to plotter.GridXYZ. Plot rows are
// flipped so that matrix row 0 is drawn at the top.
type cellGrid struct {
	values [][]float64
}

func (g cellGrid) Dims() (c, r int) {
	if len(g.values) == 0 {
		return 0, 0
	}
	return len(g.values[0]), len(g.values)
}

func (g cellGrid) Z(c, r int) float64 {
	return g.values[len(g.values)-1-r][c]
}

func (g cellGrid) X(c int) float64 { return float64(c) }
func (g cellGrid) Y(r int) float64 { return float64(r) }

func checkShape(values [][]float64) (rows, cols int, err error) {
	rows = len(values)
	if rows == 0 || len(values[0]) == 0 {
		return 0, 0, fmt.Errorf("export: empty matrix")
	}
	cols = len(values[0])
	for i, row := range values {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("export: row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return rows, cols, nil
}

// WriteHeatmapPNG draws values as a heat map and writes it as PNG.
// Unmeasured points are left blank.
func WriteHeatmapPNG(w io.Writer, title string, values [][]float64) error {
	rows, cols, err := checkShape(values)
	if err != nil {
		return err
	}
	lo, hi, _ := valueRange(values)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row"

	hm := plotter.NewHeatMap(cellGrid{values: values}, palette.Heat(12, 1))
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Transparent
	p.Add(hm)

	p.X.Tick.Marker = indexTicks(cols, false)
	p.Y.Tick.Marker = indexTicks(rows, true)

	width := vg.Length(cols)*vg.Centimeter + 4*vg.Centimeter
	height := vg.Length(rows)*vg.Centimeter + 3*vg.Centimeter
	wt, err := p.WriterTo(max(width, 10*vg.Centimeter), max(height, 8*vg.Centimeter), "png")
	if err != nil {
		return fmt.Errorf("export: heatmap: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// indexTicks labels every cell with its 1-based matrix index.
func indexTicks(n int, flipped bool) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, n)
	for i := 0; i < n; i++ {
		label := i + 1
		if flipped {
			label = n - i
		}
		ticks[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(label)}
	}
	return ticks
}

// RenderHeatmapHTML writes an interactive heat map page. Matrix row 0 is
// drawn at the top, like the PNG.
func RenderHeatmapHTML(w io.Writer, title string, values [][]float64) error {
	rows, cols, err := checkShape(values)
	if err != nil {
		return err
	}
	lo, hi, _ := valueRange(values)

	xs := make([]string, cols)
	for j := range xs {
		xs[j] = strconv.Itoa(j + 1)
	}
	ys := make([]string, rows)
	for i := range ys {
		ys[i] = strconv.Itoa(rows - i)
	}

	data := make([]opts.HeatMapData, 0, rows*cols)
	for i, row := range values {
		y := rows - 1 - i
		for j, v := range row {
			var z interface{} = "-"
			if !math.IsNaN(v) {
				z = v
			}
			data = append(data, opts.HeatMapData{
				Name:  fmt.Sprintf("(%d,%d)", i+1, j+1),
				Value: [3]interface{}{j, y, z},
			})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "900px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d x %d points", rows, cols),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Column", Type: "category", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Row", Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.AddSeries("value", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("export: render heatmap: %w", err)
	}
	return nil
}
