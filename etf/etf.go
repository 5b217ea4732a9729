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

// Package etf implements the market data fetcher: the complete list of top
// ETFs from the Yahoo! Finance screener, and the summary and open / close
// status of a market.
//
// All the data is fetched lazily on first access and cached for the lifetime
// of the Fetcher. The cache is never refreshed; create a new Fetcher to get
// fresh data. A Fetcher is not safe for concurrent use.
package etf

import (
	"context"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/yahoo"
)

// Fetcher of the ETF screener results and the market data.
type Fetcher struct {
	market   string // market code, e.g. "us"
	screener string
	pageSize int

	// Caches; nil until fetched.
	topETFs []yahoo.Record
	meta    *yahoo.CriteriaMeta
	summary *yahoo.MarketSummary
	status  *yahoo.MarketStatus
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// PageSize sets the number of screener records to request per page.
func PageSize(n int) Option {
	return func(f *Fetcher) {
		f.pageSize = n
	}
}

// Screener selects a predefined screener other than yahoo.TopETFsUS.
func Screener(id string) Option {
	return func(f *Fetcher) {
		f.screener = id
	}
}

// NewFetcher creates a fetcher for the market code, e.g. "us". The Yahoo
// client and the HTTP client are taken from the context of each call.
func NewFetcher(market string, opts ...Option) *Fetcher {
	f := &Fetcher{
		market:   market,
		screener: yahoo.TopETFsUS,
		pageSize: yahoo.MaxPageSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TopETFs returns all the screener records, downloading all the pages on the
// first call. If a page comes without a result, the records received so far
// are returned. The result is cached once at least one page was received.
func (f *Fetcher) TopETFs(ctx context.Context) ([]yahoo.Record, error) {
	if f.topETFs != nil {
		return f.topETFs, nil
	}
	q := yahoo.NewScreenerQuery(f.screener).Count(f.pageSize)
	it := q.Read(ctx)
	records, err := it.All()
	if err != nil {
		return nil, errors.Annotate(err, "%s: failed to fetch top ETFs", f.market)
	}
	if it.Pages() == 0 {
		logging.Warningf(ctx, "%s: no screener pages received", f.market)
		return records, nil
	}
	meta := it.Meta()
	f.meta = &meta
	f.topETFs = records
	logging.Debugf(ctx, "%s: fetched %d of %d top ETFs in %d pages",
		f.market, len(records), it.Total(), it.Pages())
	return f.topETFs, nil
}

// Meta of the last screener page received by TopETFs, or nil if TopETFs
// has not fetched anything yet.
func (f *Fetcher) Meta() *yahoo.CriteriaMeta {
	return f.meta
}

// EnsureMarketData fetches both the market summary and the market status,
// unless both are already cached. The two are always fetched together so that
// they describe the same moment. Shape errors are logged and leave the data
// partially normalized; only a failure to fetch is returned.
func (f *Fetcher) EnsureMarketData(ctx context.Context) error {
	if f.summary != nil && f.status != nil {
		return nil
	}
	logging.Debugf(ctx, "%s: parsing market data", f.market)

	rawSummary, err := yahoo.FetchMarketSummaryJSON(ctx, f.market)
	if err != nil {
		return errors.Annotate(err, "%s: failed to fetch market summary", f.market)
	}
	rawStatus, err := yahoo.FetchMarketStatusJSON(ctx, f.market)
	if err != nil {
		return errors.Annotate(err, "%s: failed to fetch market status", f.market)
	}

	summary, err := yahoo.ParseMarketSummary(rawSummary)
	if err != nil {
		logging.Errorf(ctx, "%s: failed to parse market summary", f.market)
		logging.Debugf(ctx, "%s", err.Error())
	}
	status, err := yahoo.ParseMarketStatus(rawStatus)
	if err != nil {
		if status.Stage == yahoo.StatusRaw {
			logging.Errorf(ctx, "%s: failed to parse market status", f.market)
		} else {
			logging.Errorf(ctx, "%s: failed to update market status", f.market)
		}
		logging.Debugf(ctx, "%s", err.Error())
	}
	f.summary = summary
	f.status = status
	return nil
}

// Summary of the market, fetched together with the status on first access.
func (f *Fetcher) Summary(ctx context.Context) (*yahoo.MarketSummary, error) {
	if err := f.EnsureMarketData(ctx); err != nil {
		return nil, err
	}
	return f.summary, nil
}

// Status of the market, fetched together with the summary on first access.
func (f *Fetcher) Status(ctx context.Context) (*yahoo.MarketStatus, error) {
	if err := f.EnsureMarketData(ctx); err != nil {
		return nil, err
	}
	return f.status, nil
}
