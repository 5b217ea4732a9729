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

package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// ScreenerPath is the endpoint of the predefined screeners.
const ScreenerPath = "/v1/finance/screener/predefined/saved"

// TopETFsUS is the ID of the predefined screener of top US ETFs.
const TopETFsUS = "TOP_ETFS_US"

// MaxPageSize is the largest number of records the screener returns in a
// single page.
const MaxPageSize = 250

// Record is a single screener row as received from the API.
type Record map[string]any

// CriteriaMeta describes the screener criteria and the position of the page
// in the complete result set.
type CriteriaMeta struct {
	Size      int    `json:"size"`
	Offset    int    `json:"offset"`
	SortField string `json:"sortField"`
	SortType  string `json:"sortType"`
	QuoteType string `json:"quoteType"`
}

// ScreenerResult is the content of a successful screener page.
type ScreenerResult struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	CanonicalName string       `json:"canonicalName"`
	CriteriaMeta  CriteriaMeta `json:"criteriaMeta"`
	Start         int          `json:"start"`
	Count         int          `json:"count"`
	Total         int          `json:"total"`
	Records       []Record     `json:"records"`
}

// APIError is the error payload the API sends instead of a result.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) String() string {
	if e == nil {
		return "no error details"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ScreenerPage is a single response of the screener endpoint. Result is nil
// when the response did not carry any data, in which case Error may explain
// why.
type ScreenerPage struct {
	Result *ScreenerResult
	Error  *APIError
}

type screenerResponse struct {
	Finance struct {
		Result []ScreenerResult `json:"result"`
		Error  *APIError        `json:"error"`
	} `json:"finance"`
}

// TestScreenerPage generates the JSON string in a format as returned by the
// screener API. For use in tests.
func TestScreenerPage(records []Record, offset, total int) (string, error) {
	var resp screenerResponse
	resp.Finance.Result = []ScreenerResult{{
		ID:            TopETFsUS,
		CanonicalName: TopETFsUS,
		CriteriaMeta: CriteriaMeta{
			Size:      len(records),
			Offset:    offset,
			QuoteType: "ETF",
		},
		Start:   offset,
		Count:   len(records),
		Total:   total,
		Records: records,
	}}
	bytes, err := json.Marshal(&resp)
	return string(bytes), err
}

// TestScreenerError generates the JSON string of a screener response without
// a result. For use in tests.
func TestScreenerError(code, description string) (string, error) {
	var resp screenerResponse
	resp.Finance.Error = &APIError{Code: code, Description: description}
	bytes, err := json.Marshal(&resp)
	return string(bytes), err
}

// ScreenerQuery is a builder for a screener query. All of its builder methods
// create a copy, leaving the original intact.
type ScreenerQuery struct {
	screener string
	start    int
	count    int
	region   string
	lang     string
}

// NewScreenerQuery creates a query for the predefined screener with a full
// page size, starting at the first record.
func NewScreenerQuery(screener string) *ScreenerQuery {
	return &ScreenerQuery{
		screener: screener,
		count:    MaxPageSize,
		region:   "US",
		lang:     "en-US",
	}
}

// Copy creates a copy of the query.
func (q *ScreenerQuery) Copy() *ScreenerQuery {
	q2 := *q
	return &q2
}

// Start sets the offset of the first record to fetch.
func (q *ScreenerQuery) Start(start int) *ScreenerQuery {
	if start < 0 {
		start = 0
	}
	q2 := q.Copy()
	q2.start = start
	return q2
}

// Count sets the page size, [1..MaxPageSize].
func (q *ScreenerQuery) Count(count int) *ScreenerQuery {
	if count < 1 {
		count = 1
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}
	q2 := q.Copy()
	q2.count = count
	return q2
}

// Region sets the region of the screener, e.g. "US".
func (q *ScreenerQuery) Region(region string) *ScreenerQuery {
	q2 := q.Copy()
	q2.region = region
	return q2
}

// Lang sets the language of the response, e.g. "en-US".
func (q *ScreenerQuery) Lang(lang string) *ScreenerQuery {
	q2 := q.Copy()
	q2.lang = lang
	return q2
}

// PageSize of the query.
func (q *ScreenerQuery) PageSize() int {
	return q.count
}

// Values returns the query values. Each call creates a new object.
func (q *ScreenerQuery) Values() url.Values {
	v := make(url.Values)
	v.Set("formatted", "false")
	v.Set("useRecordsResponse", "true")
	v.Set("withReturns", "true")
	v.Set("lang", q.lang)
	v.Set("region", q.region)
	v.Set("count", fmt.Sprintf("%d", q.count))
	v.Set("scrIds", q.screener)
	v.Set("start", fmt.Sprintf("%d", q.start))
	return v
}

// FetchScreenerPage downloads a single page of the screener. A response
// without a result, including a malformed response body, is not an error: it
// yields a page with a nil Result.
func FetchScreenerPage(ctx context.Context, q *ScreenerQuery) (*ScreenerPage, error) {
	var resp screenerResponse
	ok, err := fetchJSON(ctx, ScreenerPath, q.Values(), &resp)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch screener %s", q.screener)
	}
	if !ok {
		return &ScreenerPage{}, nil
	}
	page := ScreenerPage{Error: resp.Finance.Error}
	if len(resp.Finance.Result) > 0 {
		page.Result = &resp.Finance.Result[0]
	}
	return &page, nil
}

// ScreenerIterator iterates over screener records one by one. Paging is
// handled transparently.
type ScreenerIterator struct {
	context   context.Context
	query     *ScreenerQuery
	page      ScreenerResult
	index     int  // the record for Next() to return
	pageCount int  // number of pages received so far
	started   bool // if at least one page was received
	done      bool // no more pages to fetch
}

// Read sets up the iterator over the screener records, which will fetch the
// pages as needed.
func (q *ScreenerQuery) Read(ctx context.Context) *ScreenerIterator {
	return &ScreenerIterator{context: ctx, query: q}
}

// nextPage fetches the next page. It returns false when there are no more
// pages, or the page could not be fetched.
func (it *ScreenerIterator) nextPage() (bool, error) {
	if it.done {
		return false, nil
	}
	q := it.query
	if it.started {
		q = q.Start(it.page.CriteriaMeta.Offset + q.PageSize())
	}
	page, err := FetchScreenerPage(it.context, q)
	if err != nil {
		it.done = true
		return false, errors.Annotate(err, "failed to fetch page %d", it.pageCount+1)
	}
	if page.Result == nil {
		it.done = true
		logging.Errorf(it.context, "screener %s: no result in page %d: %s",
			q.screener, it.pageCount+1, page.Error.String())
		return false, nil
	}
	res := page.Result
	if it.started && res.CriteriaMeta.Offset <= it.page.CriteriaMeta.Offset {
		it.done = true
		logging.Warningf(it.context,
			"screener %s: offset did not advance past %d, stopping",
			q.screener, it.page.CriteriaMeta.Offset)
		return false, nil
	}
	it.query = q
	it.started = true
	it.page = *res
	it.index = 0
	it.pageCount++
	logging.Infof(it.context,
		"screener %s: fetched page %d with %d records; offset %d of %d",
		q.screener, it.pageCount, len(res.Records), res.CriteriaMeta.Offset, res.Total)

	if res.CriteriaMeta.Offset+q.PageSize() >= res.Total {
		it.done = true
	} else if len(res.Records) == 0 {
		it.done = true
		logging.Warningf(it.context,
			"screener %s: empty page at offset %d before reaching total %d",
			q.screener, res.CriteriaMeta.Offset, res.Total)
	}
	return true, nil
}

// Next returns the next record. When there are no more records, the second
// value is false. A non-nil error always comes with false.
func (it *ScreenerIterator) Next() (Record, bool, error) {
	for it.index >= len(it.page.Records) {
		if ok, err := it.nextPage(); !ok {
			return nil, false, err
		}
	}
	r := it.page.Records[it.index]
	it.index++
	return r, true, nil
}

// Pages is the number of pages received so far.
func (it *ScreenerIterator) Pages() int {
	return it.pageCount
}

// Meta of the last received page.
func (it *ScreenerIterator) Meta() CriteriaMeta {
	return it.page.CriteriaMeta
}

// Total is the number of records in the complete result set, as reported by
// the last received page.
func (it *ScreenerIterator) Total() int {
	return it.page.Total
}

// All reads the remaining records from the iterator. Use Pages, Meta and
// Total afterwards to inspect what was received.
func (it *ScreenerIterator) All() ([]Record, error) {
	records := []Record{}
	for {
		r, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, r)
	}
}

// FetchAllRecords downloads all the screener pages and concatenates their
// records in order. A page without a result stops the download and returns
// the records accumulated so far.
func FetchAllRecords(ctx context.Context, q *ScreenerQuery) ([]Record, error) {
	return q.Read(ctx).All()
}
