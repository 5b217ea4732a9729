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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
)

// Endpoints of the market summary and market times.
const (
	SummaryPath = "/v6/finance/quote/marketSummary"
	StatusPath  = "/v6/finance/markettime"
)

// SummaryFields are the quote fields requested for the market summary.
var SummaryFields = []string{
	"shortName",
	"regularMarketPrice",
	"regularMarketChange",
	"regularMarketChangePercent",
}

// FetchMarketSummaryJSON downloads the raw market summary for the market code,
// e.g. "us". A malformed response yields an empty JSON object.
func FetchMarketSummaryJSON(ctx context.Context, market string) (any, error) {
	query := url.Values{
		"fields":    {strings.Join(SummaryFields, ",")},
		"formatted": {"false"},
		"lang":      {"en-US"},
		"market":    {market},
	}
	var js any
	ok, err := fetchJSON(ctx, SummaryPath, query, &js)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch market summary for %s", market)
	}
	if !ok {
		return map[string]any{}, nil
	}
	return js, nil
}

// FetchMarketStatusJSON downloads the raw market times for the market code.
// A malformed response yields an empty JSON object.
func FetchMarketStatusJSON(ctx context.Context, market string) (any, error) {
	query := url.Values{
		"formatted": {"true"},
		"key":       {"finance"},
		"lang":      {"en-US"},
		"market":    {market},
	}
	var js any
	ok, err := fetchJSON(ctx, StatusPath, query, &js)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch market status for %s", market)
	}
	if !ok {
		return map[string]any{}, nil
	}
	return js, nil
}

// SummaryEntry is the market summary of a single exchange.
type SummaryEntry struct {
	Exchange      string
	ShortName     string
	Price         float64
	Change        float64
	ChangePercent float64
	Fields        map[string]any // the complete record as received
}

// MarketSummary maps exchange IDs to their summaries. When the payload could
// not be reshaped, Exchanges is nil and only Raw is available.
type MarketSummary struct {
	Exchanges map[string]*SummaryEntry
	Raw       any
}

// ParseMarketSummary re-keys the summary records by their exchange. It always
// returns a non-nil summary with Raw set; the error reports why the records
// could not be re-keyed.
func ParseMarketSummary(raw any) (*MarketSummary, error) {
	s := &MarketSummary{Raw: raw}
	resp, err := lookupMap(raw, "marketSummaryResponse")
	if err != nil {
		return s, errors.Annotate(err, "failed to parse market summary")
	}
	list, err := lookupSlice(resp, "result")
	if err != nil {
		return s, errors.Annotate(err, "failed to parse market summary")
	}
	exchanges := make(map[string]*SummaryEntry, len(list))
	for i, v := range list {
		rec, err := asMap(v)
		if err != nil {
			return s, errors.Annotate(err, "summary record %d", i)
		}
		ex, err := lookupString(rec, "exchange")
		if err != nil {
			return s, errors.Annotate(err, "summary record %d", i)
		}
		e := &SummaryEntry{Exchange: ex, Fields: rec}
		e.ShortName, _ = rec["shortName"].(string)
		e.Price, _ = number(rec["regularMarketPrice"])
		e.Change, _ = number(rec["regularMarketChange"])
		e.ChangePercent, _ = number(rec["regularMarketChangePercent"])
		exchanges[ex] = e
	}
	s.Exchanges = exchanges
	return s, nil
}

// StatusStage tells how far the normalization of the market status got.
type StatusStage int

// Values of StatusStage.
const (
	StatusRaw       StatusStage = iota // Fields is the raw payload
	StatusLocated                      // Fields is the market time record
	StatusNormalized                   // also Open, Close and Location are set
)

// MarketStatus is the open / close schedule of a market.
type MarketStatus struct {
	Stage    StatusStage
	Fields   map[string]any // see Stage
	Raw      any            // the payload as received
	Open     time.Time
	Close    time.Time
	Location *time.Location // fixed offset zone of the market
}

// ParseMarketStatus locates the market time record in the payload, replaces
// its timezone list by the first timezone, drops the redundant "time" field
// and parses the open and close times. It always returns a non-nil status
// normalized as far as possible; the error reports what stopped it.
func ParseMarketStatus(raw any) (*MarketStatus, error) {
	s := &MarketStatus{Raw: raw}
	if m, ok := raw.(map[string]any); ok {
		s.Fields = m
	}
	rec, err := locateMarketTime(raw)
	if err != nil {
		return s, errors.Annotate(err, "failed to parse market status")
	}
	fields := copyMap(rec)
	s.Fields = fields
	s.Stage = StatusLocated

	tzs, err := lookupSlice(fields, "timezone")
	if err != nil {
		return s, errors.Annotate(err, "failed to parse market status")
	}
	tz, err := firstMap(tzs)
	if err != nil {
		return s, errors.Annotate(err, "failed to parse market status timezone")
	}
	fields["timezone"] = tz
	if _, ok := fields["time"]; !ok {
		return s, errors.Reason("failed to parse market status: missing key 'time'")
	}
	delete(fields, "time")

	if err := s.parseTimes(tz); err != nil {
		return s, errors.Annotate(err, "failed to update market status")
	}
	return s, nil
}

func locateMarketTime(raw any) (map[string]any, error) {
	finance, err := lookupMap(raw, "finance")
	if err != nil {
		return nil, err
	}
	times, err := lookupSlice(finance, "marketTimes")
	if err != nil {
		return nil, err
	}
	first, err := firstMap(times)
	if err != nil {
		return nil, errors.Annotate(err, "marketTimes")
	}
	list, err := lookupSlice(first, "marketTime")
	if err != nil {
		return nil, err
	}
	rec, err := firstMap(list)
	if err != nil {
		return nil, errors.Annotate(err, "marketTime")
	}
	return rec, nil
}

func (s *MarketStatus) parseTimes(tz map[string]any) error {
	openStr, err := lookupString(s.Fields, "open")
	if err != nil {
		return err
	}
	closeStr, err := lookupString(s.Fields, "close")
	if err != nil {
		return err
	}
	open, err := parseTimestamp(openStr)
	if err != nil {
		return errors.Annotate(err, "invalid open time")
	}
	closeTm, err := parseTimestamp(closeStr)
	if err != nil {
		return errors.Annotate(err, "invalid close time")
	}
	loc, err := zoneOf(tz)
	if err != nil {
		return err
	}
	s.Open = open.In(loc)
	s.Close = closeTm.In(loc)
	s.Location = loc
	s.Fields["open"] = s.Open
	s.Fields["close"] = s.Close
	s.Fields["tz"] = loc
	s.Stage = StatusNormalized
	return nil
}

// parseTimestamp parses ISO-8601 time with or without a zone offset. Times
// without an offset are assumed to be UTC.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
	}
	var err error
	for _, f := range formats {
		var tm time.Time
		if tm, err = time.Parse(f, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Annotate(err, "unrecognized time format: '%s'", s)
}

// zoneOf creates a fixed zone from the timezone record. The "gmtoffset" field
// is in milliseconds.
func zoneOf(tz map[string]any) (*time.Location, error) {
	v, err := lookupValue(tz, "gmtoffset")
	if err != nil {
		return nil, err
	}
	var ms int64
	switch x := v.(type) {
	case string:
		if ms, err = strconv.ParseInt(x, 10, 64); err != nil {
			return nil, errors.Annotate(err, "invalid gmtoffset")
		}
	default:
		f, ok := number(x)
		if !ok {
			return nil, errors.Reason("invalid gmtoffset: %v", x)
		}
		ms = int64(f)
	}
	name, err := lookupString(tz, "short")
	if err != nil {
		return nil, err
	}
	return time.FixedZone(name, int(ms/1000)), nil
}
