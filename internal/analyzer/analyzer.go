// Package analyzer computes summary statistics, anomaly flags and trend
// indicators for uploaded CSV data.
package analyzer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultAnomalyThreshold is the modified z-score cutoff for flagging a
// row as anomalous.
const DefaultAnomalyThreshold = 3.0

// ColumnStats are the basic statistics of one numeric column. Std is the
// sample standard deviation.
type ColumnStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Trend describes the direction of one numeric column.
type Trend struct {
	Increasing    bool    `json:"increasing"`
	Decreasing    bool    `json:"decreasing"`
	TrendStrength float64 `json:"trend_strength"`
}

// DataQuality summarizes completeness and shape of the table.
type DataQuality struct {
	MissingValues map[string]int    `json:"missing_values"`
	TotalRows     int               `json:"total_rows"`
	TotalColumns  int               `json:"total_columns"`
	ColumnTypes   map[string]string `json:"column_types"`
}

// Insights is the full report served by /analyze-csv.
type Insights struct {
	BasicStats  map[string]ColumnStats `json:"basic_stats"`
	Anomalies   map[string][]int       `json:"anomalies"`
	Trends      map[string]Trend       `json:"trends"`
	DataQuality DataQuality            `json:"data_quality"`
}

// column holds parsed values; Values[i] is valid only when Present[i].
type column struct {
	name    string
	values  []float64
	present []bool
	numeric bool
	raw     []string
}

// Analyzer holds one parsed CSV table.
type Analyzer struct {
	columns []column
	rows    int
}

// LoadFile parses the CSV at path.
func LoadFile(path string) (*Analyzer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses CSV data. A table without a header or without any data
// rows is rejected before any further processing.
func Load(r io.Reader) (*Analyzer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	header := records[0]
	rows := records[1:]

	cols := make([]column, len(header))
	for i, name := range header {
		cols[i] = column{
			name:    strings.TrimSpace(name),
			values:  make([]float64, len(rows)),
			present: make([]bool, len(rows)),
			raw:     make([]string, len(rows)),
			numeric: true,
		}
	}

	for rowIdx, row := range rows {
		for colIdx := range cols {
			var cell string
			if colIdx < len(row) {
				cell = strings.TrimSpace(row[colIdx])
			}
			cols[colIdx].raw[rowIdx] = cell
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				cols[colIdx].numeric = false
				continue
			}
			cols[colIdx].values[rowIdx] = v
			cols[colIdx].present[rowIdx] = true
		}
	}

	// a column with no parseable values at all is not numeric
	for i := range cols {
		if cols[i].numeric {
			any := false
			for _, p := range cols[i].present {
				if p {
					any = true
					break
				}
			}
			cols[i].numeric = any
		}
	}

	log.Debug().Int("rows", len(rows)).Int("columns", len(header)).Msg("Loaded CSV")
	return &Analyzer{columns: cols, rows: len(rows)}, nil
}

// BasicStats computes mean, median, sample std, min and max for every
// numeric column.
func (a *Analyzer) BasicStats() map[string]ColumnStats {
	stats := make(map[string]ColumnStats)
	for _, col := range a.columns {
		if !col.numeric {
			continue
		}
		vals := col.presentValues()
		if len(vals) == 0 {
			continue
		}
		stats[col.name] = ColumnStats{
			Mean:   mean(vals),
			Median: median(vals),
			Std:    sampleStd(vals),
			Min:    minOf(vals),
			Max:    maxOf(vals),
		}
	}
	return stats
}

// DetectAnomalies flags row indices whose modified z-score (median and
// MAD based) exceeds the threshold. The modified score is used because a
// plain z-score is bounded by sqrt(n-1) and can never flag a single
// outlier in a short column.
func (a *Analyzer) DetectAnomalies(threshold float64) map[string][]int {
	anomalies := make(map[string][]int)
	for _, col := range a.columns {
		if !col.numeric {
			continue
		}
		vals := col.presentValues()
		if len(vals) < 2 {
			anomalies[col.name] = []int{}
			continue
		}

		med := median(vals)
		deviations := make([]float64, len(vals))
		for i, v := range vals {
			deviations[i] = math.Abs(v - med)
		}
		mad := median(deviations)

		flagged := []int{}
		for rowIdx := range col.present {
			if !col.present[rowIdx] {
				continue
			}
			score := modifiedZ(col.values[rowIdx], med, mad, vals)
			if math.Abs(score) > threshold {
				flagged = append(flagged, rowIdx)
			}
		}
		anomalies[col.name] = flagged
	}
	return anomalies
}

// modifiedZ is 0.6745*(v-median)/MAD; with a degenerate MAD of zero it
// falls back to the plain z-score.
func modifiedZ(v, med, mad float64, vals []float64) float64 {
	if mad > 0 {
		return 0.6745 * (v - med) / mad
	}
	std := sampleStd(vals)
	if std == 0 {
		return 0
	}
	return (v - mean(vals)) / std
}

// AnalyzeTrends reports monotonic direction and the correlation of each
// numeric column with the row index.
func (a *Analyzer) AnalyzeTrends() map[string]Trend {
	trends := make(map[string]Trend)
	for _, col := range a.columns {
		if !col.numeric {
			continue
		}
		vals := col.presentValues()
		if len(vals) == 0 {
			continue
		}
		idx := make([]float64, len(vals))
		for i := range idx {
			idx[i] = float64(i)
		}
		trends[col.name] = Trend{
			Increasing:    isMonotonic(vals, false),
			Decreasing:    isMonotonic(vals, true),
			TrendStrength: correlation(vals, idx),
		}
	}
	return trends
}

// Quality reports missing cells, table shape and inferred column types.
func (a *Analyzer) Quality() DataQuality {
	missing := make(map[string]int)
	types := make(map[string]string)
	for _, col := range a.columns {
		n := 0
		for i, cell := range col.raw {
			if cell == "" || (col.numeric && !col.present[i]) {
				n++
			}
		}
		missing[col.name] = n
		if col.numeric {
			types[col.name] = "float64"
		} else {
			types[col.name] = "object"
		}
	}
	return DataQuality{
		MissingValues: missing,
		TotalRows:     a.rows,
		TotalColumns:  len(a.columns),
		ColumnTypes:   types,
	}
}

// Insights combines every report into the response object.
func (a *Analyzer) Insights() Insights {
	return Insights{
		BasicStats:  a.BasicStats(),
		Anomalies:   a.DetectAnomalies(DefaultAnomalyThreshold),
		Trends:      a.AnalyzeTrends(),
		DataQuality: a.Quality(),
	}
}

func (c *column) presentValues() []float64 {
	var vals []float64
	for i, p := range c.present {
		if p {
			vals = append(vals, c.values[i])
		}
	}
	return vals
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func isMonotonic(vals []float64, decreasing bool) bool {
	for i := 1; i < len(vals); i++ {
		if decreasing && vals[i] > vals[i-1] {
			return false
		}
		if !decreasing && vals[i] < vals[i-1] {
			return false
		}
	}
	return true
}

// correlation is the Pearson coefficient; 0 when either side has no
// variance.
func correlation(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}
