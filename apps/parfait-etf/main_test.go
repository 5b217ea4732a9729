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

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/yahoo"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_parfait_etf")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("all flags", func() {
			flags, err := parseFlags([]string{
				"-conf", "path/to/config", "-log-level", "warning", "-market", "gb",
				"-show", "summary", "-columns", "symbol,longName", "-rows", "10",
				"-format", "csv"})
			So(err, ShouldBeNil)
			So(flags.Config, ShouldEqual, "path/to/config")
			So(flags.LogLevel, ShouldEqual, logging.Warning)
			So(flags.Market, ShouldEqual, "gb")
			So(flags.Show, ShouldEqual, "summary")
			So(flags.Columns, ShouldResemble, []string{"symbol", "longName"})
			So(flags.Rows, ShouldEqual, 10)
			So(flags.Format, ShouldEqual, "csv")
		})

		Convey("defaults", func() {
			flags, err := parseFlags([]string{})
			So(err, ShouldBeNil)
			So(flags.Config, ShouldEqual, "")
			So(flags.Market, ShouldEqual, "us")
			So(flags.Show, ShouldEqual, "etfs")
			So(flags.Columns, ShouldBeNil)
			So(flags.Format, ShouldEqual, "text")
		})

		Convey("invalid choices", func() {
			_, err := parseFlags([]string{"-show", "quotes"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-format", "xml"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("parseConfig", t, func() {
		Convey("no file", func() {
			c, err := parseConfig("")
			So(err, ShouldBeNil)
			So(c, ShouldResemble, &Config{})
			client, err := c.httpClient()
			So(err, ShouldBeNil)
			So(client.Timeout, ShouldEqual, 30*time.Second)
			So(client.Transport, ShouldBeNil)

			ctx, err := setupContext(context.Background(), c)
			So(err, ShouldBeNil)
			So(fetch.GetClient(ctx).Timeout, ShouldEqual, 30*time.Second)
			So(yahoo.GetClient(ctx).BaseURL(), ShouldEqual, yahoo.URL)
		})

		Convey("complete file", func() {
			fileName := filepath.Join(tmpdir, "config.toml")
			So(testutil.WriteFile(fileName, `base_url = "http://localhost:1234"
proxy = "http://proxy:8080"
timeout = "45s"
user_agent = "test-agent"
page_size = 100
`), ShouldBeNil)
			c, err := parseConfig(fileName)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, &Config{
				BaseURL:   "http://localhost:1234",
				Proxy:     "http://proxy:8080",
				Timeout:   "45s",
				UserAgent: "test-agent",
				PageSize:  100,
			})
			client, err := c.httpClient()
			So(err, ShouldBeNil)
			So(client.Timeout, ShouldEqual, 45*time.Second)
			So(client.Transport, ShouldNotBeNil)

			ctx, err := setupContext(context.Background(), c)
			So(err, ShouldBeNil)
			So(yahoo.GetClient(ctx).BaseURL(), ShouldEqual, "http://localhost:1234")
			So(fetch.GetClient(ctx).Timeout, ShouldEqual, 45*time.Second)
		})

		Convey("bad timeout", func() {
			c := Config{Timeout: "soon"}
			_, err := c.httpClient()
			So(err, ShouldNotBeNil)
		})

		Convey("missing file", func() {
			_, err := parseConfig(filepath.Join(tmpdir, "nonexistent.toml"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("printData works", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{"{}"}

		ctx := fetch.UseClient(context.Background(), server.Client())
		configFile := filepath.Join(tmpdir, "print.toml")
		So(testutil.WriteFile(configFile, fmt.Sprintf(`base_url = "%s"
page_size = 2
`, server.URL())), ShouldBeNil)

		Convey("ETFs as CSV", func() {
			page1, err := yahoo.TestScreenerPage([]yahoo.Record{
				{"symbol": "SPY", "longName": "SPDR S&P 500 ETF", "ytdReturn": 10.5},
				{"symbol": "IVV", "longName": "iShares Core S&P 500 ETF", "ytdReturn": 10.45},
			}, 0, 3)
			So(err, ShouldBeNil)
			page2, err := yahoo.TestScreenerPage([]yahoo.Record{
				{"symbol": "QQQ", "longName": "Invesco QQQ Trust", "ytdReturn": 7.0},
			}, 2, 3)
			So(err, ShouldBeNil)
			server.ResponseBody = []string{page1, page2}

			flags, err := parseFlags([]string{
				"-conf", configFile, "-format", "csv", "-columns", "symbol,ytdReturn"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
symbol,ytdReturn
SPY,10.50
IVV,10.45
QQQ,7.00
`)
			So(server.RequestQuery.Get("count"), ShouldEqual, "2")
			So(server.RequestQuery.Get("start"), ShouldEqual, "2")
		})

		Convey("summary as text", func() {
			server.ResponseBody = []string{`{"marketSummaryResponse": {"result": [
  {"exchange": "SNP", "shortName": "S&P 500", "regularMarketPrice": 5221.42,
   "regularMarketChange": -1.26, "regularMarketChangePercent": -0.02}]}}`,
				`{"finance": {}}`}
			flags, err := parseFlags([]string{"-conf", configFile, "-show", "summary"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
Exchange |    Name |   Price | Change | Change %
-------- | ------- | ------- | ------ | --------
     SNP | S&P 500 | 5221.42 |  -1.26 |    -0.02
`)
			So(server.RequestQuery.Get("market"), ShouldEqual, "us")
		})

		Convey("summary with selected columns", func() {
			server.ResponseBody = []string{`{"marketSummaryResponse": {"result": [
  {"exchange": "SNP", "shortName": "S&P 500", "regularMarketPrice": 5221.42}]}}`,
				`{"finance": {}}`}
			flags, err := parseFlags([]string{
				"-conf", configFile, "-show", "summary", "-format", "csv",
				"-columns", "Price,Exchange"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
Price,Exchange
5221.42,SNP
`)
		})

		Convey("status as JSON", func() {
			server.ResponseBody = []string{`{}`, `{"finance": {"marketTimes": [{"marketTime": [{
  "status": "closed", "open": "2024-05-13T09:30:00-04:00",
  "close": "2024-05-13T16:00:00-04:00", "time": "2024-05-13T18:00:00-04:00",
  "timezone": [{"gmtoffset": "-14400000", "short": "EDT"}]}]}]}}`}
			flags, err := parseFlags([]string{
				"-conf", configFile, "-show", "status", "-format", "json", "-market", "ca"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `"Value": "closed"`)
			So(buf.String(), ShouldContainSubstring, `"Value": "EDT (UTC-4.0)"`)
			So(buf.String(), ShouldNotContainSubstring, `"Field": "time"`)
			So(server.RequestQuery.Get("market"), ShouldEqual, "ca")
		})

		Convey("service unavailable", func() {
			server.ResponseBody = []string{"<h1>Will be right back</h1>"}
			flags, err := parseFlags([]string{"-conf", configFile})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldNotBeNil)
		})

		Convey("service unavailable with an error status", func() {
			server.ResponseStatus = []int{http.StatusServiceUnavailable}
			server.ResponseBody = []string{"<h1>Will be right back</h1>"}
			flags, err := parseFlags([]string{"-conf", configFile, "-show", "summary"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			err = printData(ctx, flags, &buf)
			So(errors.Is(err, yahoo.ErrServiceUnavailable), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "currently down")
			So(buf.Len(), ShouldEqual, 0)
		})
	})
}
