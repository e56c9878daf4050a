package domain

import (
	"time"
)

// Return type conventions used across the engines.
const (
	ReturnSimple = "simple"
	ReturnLog    = "log"
)

// DateFormat is the wire format for all serialized dates.
const DateFormat = "2006-01-02"

// Series is an ordered sequence of dated float observations. Missing values
// are explicit: Valid[i] reports whether Values[i] holds an observation.
// Dates are strictly increasing and unique. A Series is never mutated after
// construction; every operation returns a new Series.
type Series struct {
	Dates  []time.Time
	Values []float64
	Valid  []bool
}

// NewSeries builds a fully-observed series.
func NewSeries(dates []time.Time, values []float64) Series {
	valid := make([]bool, len(values))
	for i := range valid {
		valid[i] = true
	}
	return Series{Dates: dates, Values: values, Valid: valid}
}

// NewSeriesWithMask builds a series with an explicit missing-value mask.
func NewSeriesWithMask(dates []time.Time, values []float64, valid []bool) Series {
	return Series{Dates: dates, Values: values, Valid: valid}
}

// Len returns the number of rows, present or missing.
func (s Series) Len() int { return len(s.Dates) }

// MissingCount returns the number of missing rows.
func (s Series) MissingCount() int {
	n := 0
	for _, ok := range s.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// Dropped returns a copy with all missing rows removed.
func (s Series) Dropped() Series {
	dates := make([]time.Time, 0, len(s.Dates))
	values := make([]float64, 0, len(s.Values))
	for i := range s.Dates {
		if s.Valid[i] {
			dates = append(dates, s.Dates[i])
			values = append(values, s.Values[i])
		}
	}
	return NewSeries(dates, values)
}

// Tail returns the last n rows (all rows when n <= 0 or n >= Len).
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= s.Len() {
		return s
	}
	start := s.Len() - n
	return Series{
		Dates:  s.Dates[start:],
		Values: s.Values[start:],
		Valid:  s.Valid[start:],
	}
}

// DateStrings returns the dates formatted for serialization.
func (s Series) DateStrings() []string {
	out := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		out[i] = d.Format(DateFormat)
	}
	return out
}

// Frame is a dates x symbols matrix of observations with an explicit
// missing-value mask, the same layout for asset return matrices and price
// panels. Values are row-major: Values[row][col].
type Frame struct {
	Dates   []time.Time
	Symbols []string
	Values  [][]float64
	Valid   [][]bool
}

// NewFrame allocates an all-missing frame of the given shape.
func NewFrame(dates []time.Time, symbols []string) Frame {
	values := make([][]float64, len(dates))
	valid := make([][]bool, len(dates))
	for i := range dates {
		values[i] = make([]float64, len(symbols))
		valid[i] = make([]bool, len(symbols))
	}
	return Frame{Dates: dates, Symbols: symbols, Values: values, Valid: valid}
}

// Rows returns the number of rows.
func (f Frame) Rows() int { return len(f.Dates) }

// Cols returns the number of columns.
func (f Frame) Cols() int { return len(f.Symbols) }

// IsEmpty reports whether the frame has no rows or no columns.
func (f Frame) IsEmpty() bool { return f.Rows() == 0 || f.Cols() == 0 }

// ColumnIndex returns the position of a symbol, or -1.
func (f Frame) ColumnIndex(symbol string) int {
	for i, s := range f.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Column extracts one symbol as a Series. The second return is false when
// the symbol is not present.
func (f Frame) Column(symbol string) (Series, bool) {
	idx := f.ColumnIndex(symbol)
	if idx < 0 {
		return Series{}, false
	}
	values := make([]float64, f.Rows())
	valid := make([]bool, f.Rows())
	for i := range f.Dates {
		values[i] = f.Values[i][idx]
		valid[i] = f.Valid[i][idx]
	}
	return Series{Dates: f.Dates, Values: values, Valid: valid}, true
}

// Tail returns the last n rows (all rows when n <= 0 or n >= Rows).
func (f Frame) Tail(n int) Frame {
	if n <= 0 || n >= f.Rows() {
		return f
	}
	start := f.Rows() - n
	return Frame{
		Dates:   f.Dates[start:],
		Symbols: f.Symbols,
		Values:  f.Values[start:],
		Valid:   f.Valid[start:],
	}
}

// DropMissingRows returns only the rows where every column is observed.
func (f Frame) DropMissingRows() Frame {
	return f.filterRows(func(row int) bool {
		for _, ok := range f.Valid[row] {
			if !ok {
				return false
			}
		}
		return true
	})
}

// DropAllMissingRows returns the rows where at least one column is observed.
func (f Frame) DropAllMissingRows() Frame {
	return f.filterRows(func(row int) bool {
		for _, ok := range f.Valid[row] {
			if ok {
				return true
			}
		}
		return false
	})
}

// RowsAt selects the rows whose dates appear in the given set, preserving
// order. Dates absent from the frame are skipped.
func (f Frame) RowsAt(dates []time.Time) Frame {
	index := make(map[time.Time]int, f.Rows())
	for i, d := range f.Dates {
		index[d] = i
	}
	outDates := make([]time.Time, 0, len(dates))
	outValues := make([][]float64, 0, len(dates))
	outValid := make([][]bool, 0, len(dates))
	for _, d := range dates {
		if row, ok := index[d]; ok {
			outDates = append(outDates, f.Dates[row])
			outValues = append(outValues, f.Values[row])
			outValid = append(outValid, f.Valid[row])
		}
	}
	return Frame{Dates: outDates, Symbols: f.Symbols, Values: outValues, Valid: outValid}
}

// DropColumns returns a frame without the named columns.
func (f Frame) DropColumns(symbols []string) Frame {
	drop := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		drop[s] = true
	}
	keep := make([]int, 0, f.Cols())
	keptSymbols := make([]string, 0, f.Cols())
	for i, s := range f.Symbols {
		if !drop[s] {
			keep = append(keep, i)
			keptSymbols = append(keptSymbols, s)
		}
	}
	out := NewFrame(f.Dates, keptSymbols)
	for row := range f.Dates {
		for j, col := range keep {
			out.Values[row][j] = f.Values[row][col]
			out.Valid[row][j] = f.Valid[row][col]
		}
	}
	return out
}

// MissingFraction returns the share of missing rows in one column.
func (f Frame) MissingFraction(col int) float64 {
	if f.Rows() == 0 {
		return 1.0
	}
	missing := 0
	for row := range f.Dates {
		if !f.Valid[row][col] {
			missing++
		}
	}
	return float64(missing) / float64(f.Rows())
}

// ColumnValues returns the observed values of one column in order.
func (f Frame) ColumnValues(col int) []float64 {
	out := make([]float64, 0, f.Rows())
	for row := range f.Dates {
		if f.Valid[row][col] {
			out = append(out, f.Values[row][col])
		}
	}
	return out
}

// WeightVector maps a symbol->weight mapping onto the frame's column order.
// Symbols without a weight entry get zero exposure.
func (f Frame) WeightVector(weights map[string]float64) []float64 {
	out := make([]float64, f.Cols())
	for i, s := range f.Symbols {
		out[i] = weights[s]
	}
	return out
}

func (f Frame) filterRows(keep func(row int) bool) Frame {
	outDates := make([]time.Time, 0, f.Rows())
	outValues := make([][]float64, 0, f.Rows())
	outValid := make([][]bool, 0, f.Rows())
	for row := range f.Dates {
		if keep(row) {
			outDates = append(outDates, f.Dates[row])
			outValues = append(outValues, f.Values[row])
			outValid = append(outValid, f.Valid[row])
		}
	}
	return Frame{Dates: outDates, Symbols: f.Symbols, Values: outValues, Valid: outValid}
}
