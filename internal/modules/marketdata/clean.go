package marketdata

import (
	"github.com/meridian-labs/riskd/internal/domain"
)

// forwardFillColumn fills missing runs of up to maxGap observations with the
// last valid value. Runs longer than maxGap and leading runs (no prior
// value) stay missing.
func forwardFillColumn(frame *domain.Frame, col, maxGap int) {
	rows := frame.Rows()
	row := 0
	for row < rows {
		if frame.Valid[row][col] {
			row++
			continue
		}
		// Measure the missing run.
		runStart := row
		for row < rows && !frame.Valid[row][col] {
			row++
		}
		runLen := row - runStart
		if runStart == 0 || runLen > maxGap {
			continue
		}
		fill := frame.Values[runStart-1][col]
		for i := runStart; i < runStart+runLen; i++ {
			frame.Values[i][col] = fill
			frame.Valid[i][col] = true
		}
	}
}

// columnReport computes the missing fraction and longest missing run of one
// column.
func columnReport(frame domain.Frame, col int) MissingReportItem {
	total := frame.Rows()
	missing := 0
	longest := 0
	current := 0
	for row := 0; row < total; row++ {
		if frame.Valid[row][col] {
			current = 0
			continue
		}
		missing++
		current++
		if current > longest {
			longest = current
		}
	}
	pct := 1.0
	if total > 0 {
		pct = float64(missing) / float64(total)
	}
	return MissingReportItem{
		Symbol:     frame.Symbols[col],
		MissingPct: pct,
		LongestGap: longest,
	}
}

// missingReport computes per-symbol data quality for a frame.
func missingReport(frame domain.Frame) []MissingReportItem {
	out := make([]MissingReportItem, frame.Cols())
	for col := range frame.Symbols {
		out[col] = columnReport(frame, col)
	}
	return out
}

// validCount counts observed rows in one column.
func validCount(frame domain.Frame, col int) int {
	n := 0
	for row := 0; row < frame.Rows(); row++ {
		if frame.Valid[row][col] {
			n++
		}
	}
	return n
}
