package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stratopt-go/internal/perf"
)

// CorrelationMatrix returns Pearson correlations between every pair of history columns.
// Columns with no variance correlate as 0 with others and 1 with themselves.
func CorrelationMatrix(rows []perf.Observation) ([]string, [][]float64) {
	cols := perf.Columns()
	if len(rows) < 2 {
		return cols, nil
	}

	data := mat.NewDense(len(rows), len(cols), nil)
	for i, obs := range rows {
		data.SetRow(i, obs.Values())
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, data, nil)

	out := make([][]float64, len(cols))
	for i := range cols {
		out[i] = make([]float64, len(cols))
		for j := range cols {
			v := corr.At(i, j)
			switch {
			case i == j:
				v = 1
			case math.IsNaN(v) || math.IsInf(v, 0):
				v = 0
			}
			out[i][j] = v
		}
	}
	return cols, out
}
