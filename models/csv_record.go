package models

import "strconv"

// CSVRowWriter is implemented by every record persisted as a CSV row:
// metadata.csv frames and windows.csv entries.
type CSVRowWriter interface {
	CSVHeader() []string
	CSVRow() []string
}

// csvRow accumulates the cells of one row in column order.
type csvRow []string

func newRow(cols int) csvRow { return make(csvRow, 0, cols) }

func (r csvRow) str(s string) csvRow  { return append(r, s) }
func (r csvRow) num(v int64) csvRow   { return append(r, strconv.FormatInt(v, 10)) }
func (r csvRow) unum(v uint64) csvRow { return append(r, strconv.FormatUint(v, 10)) }

// fixed writes v with exactly prec decimals, never in exponent form.
func (r csvRow) fixed(v float64, prec int) csvRow {
	return append(r, strconv.FormatFloat(v, 'f', prec, 64))
}

// flag writes booleans as 0/1 so the column sums to a count.
func (r csvRow) flag(b bool) csvRow {
	if b {
		return append(r, "1")
	}
	return append(r, "0")
}
