// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package etf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/marketdata/table"
	"github.com/stockparfait/marketdata/yahoo"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Cell of a record table.
type Cell struct {
	IsNumber bool // which field to use as a value
	number   float64
	string   string
}

// String representation of the cell, used in CSV and text tables.
func (c Cell) String() string {
	if c.IsNumber {
		return fmt.Sprintf("%.2f", c.number)
	}
	return c.string
}

// String creates a string Cell.
func String(s string) Cell {
	return Cell{string: s}
}

// Number creates a numerical Cell.
func Number(n float64) Cell {
	return Cell{IsNumber: true, number: n}
}

// CellOf converts a JSON value of a record field into a Cell. Missing values
// become empty strings, and the API's {"raw": ..., "fmt": ...} objects are
// shown by their formatted string.
func CellOf(v any) Cell {
	switch x := v.(type) {
	case nil:
		return String("")
	case float64:
		return Number(x)
	case string:
		return String(x)
	case bool:
		return String(fmt.Sprintf("%t", x))
	case time.Time:
		return String(x.Format(time.RFC3339))
	case map[string]any:
		if s, ok := x["fmt"].(string); ok {
			return String(s)
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return String(fmt.Sprintf("%v", v))
	}
	return String(string(b))
}

// Row of cells, implementing table.Row.
type Row []Cell

var _ table.Row = Row{}

// CSV implements table.Row.
func (r Row) CSV() []string {
	res := make([]string, len(r))
	for i, c := range r {
		res[i] = c.String()
	}
	return res
}

// Columns is the sorted union of the field names of all the records.
func Columns(records []yahoo.Record) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	cols := maps.Keys(set)
	slices.Sort(cols)
	return cols
}

// RecordsTable converts the records into a table with the given columns, in
// the order of the records. With no columns, all the columns are used.
func RecordsTable(records []yahoo.Record, columns ...string) *table.Table {
	if len(columns) == 0 {
		columns = Columns(records)
	}
	toRow := func(r yahoo.Record, rows []table.Row) []table.Row {
		cells := make(Row, len(columns))
		for i, c := range columns {
			cells[i] = CellOf(r[c])
		}
		return append(rows, cells)
	}
	tbl := table.NewTable(columns...)
	tbl.AddRow(iterator.Reduce[yahoo.Record, []table.Row](
		iterator.FromSlice(records), []table.Row{}, toRow)...)
	return tbl
}

// Table of the top ETFs with the given columns; all the columns by default.
func (f *Fetcher) Table(ctx context.Context, columns ...string) (*table.Table, error) {
	records, err := f.TopETFs(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch records")
	}
	return RecordsTable(records, columns...), nil
}

// SummaryTable prints the market summary one exchange per row, sorted by the
// exchange ID. A summary which could not be normalized is shown as a single
// raw JSON cell.
func SummaryTable(s *yahoo.MarketSummary) *table.Table {
	if s.Exchanges == nil {
		tbl := table.NewTable("Raw")
		tbl.AddRow(Row{CellOf(s.Raw)})
		return tbl
	}
	tbl := table.NewTable("Exchange", "Name", "Price", "Change", "Change %")
	exchanges := maps.Keys(s.Exchanges)
	slices.Sort(exchanges)
	for _, ex := range exchanges {
		e := s.Exchanges[ex]
		tbl.AddRow(Row{
			String(e.Exchange),
			String(e.ShortName),
			Number(e.Price),
			Number(e.Change),
			Number(e.ChangePercent),
		})
	}
	return tbl
}

// StatusTable prints the market status as field / value pairs sorted by the
// field name.
func StatusTable(s *yahoo.MarketStatus) *table.Table {
	tbl := table.NewTable("Field", "Value")
	fields := maps.Keys(s.Fields)
	slices.Sort(fields)
	for _, k := range fields {
		v := s.Fields[k]
		if loc, ok := v.(*time.Location); ok {
			_, offset := time.Now().In(loc).Zone()
			v = fmt.Sprintf("%s (UTC%+.1f)", loc.String(), float64(offset)/3600)
		}
		tbl.AddRow(Row{String(k), CellOf(v)})
	}
	return tbl
}

// SummaryTable fetches the market data if necessary and prints the summary.
func (f *Fetcher) SummaryTable(ctx context.Context) (*table.Table, error) {
	s, err := f.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return SummaryTable(s), nil
}

// StatusTable fetches the market data if necessary and prints the status.
func (f *Fetcher) StatusTable(ctx context.Context) (*table.Table, error) {
	s, err := f.Status(ctx)
	if err != nil {
		return nil, err
	}
	return StatusTable(s), nil
}
