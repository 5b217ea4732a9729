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
	"context"
	"flag"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/etf"
	"github.com/stockparfait/marketdata/table"
	"github.com/stockparfait/marketdata/yahoo"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	LogLevel logging.Level
	Config   string   // optional TOML config file
	Market   string   // market code for the summary and status
	Show     string   // etfs, summary or status
	Columns  []string // columns to print; default: all
	Rows     int      // max. number of rows to print; 0 = all
	Format   string   // text, csv or json
}

func stringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var columns string
	fs := flag.NewFlagSet("parfait-etf", flag.ExitOnError)
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Config, "conf", "", "TOML config file (optional)")
	fs.StringVar(&flags.Market, "market", "us", "market code")
	fs.StringVar(&flags.Show, "show", "etfs", "what to print: etfs, summary, status")
	fs.StringVar(&columns, "columns", "", "comma separated columns to print; default: all")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print; 0 = all")
	fs.StringVar(&flags.Format, "format", "text", "output format: text, csv, json")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if !stringIn(flags.Show, "etfs", "summary", "status") {
		return nil, errors.Reason("invalid -show value: '%s'", flags.Show)
	}
	if !stringIn(flags.Format, "text", "csv", "json") {
		return nil, errors.Reason("invalid -format value: '%s'", flags.Format)
	}
	if columns != "" {
		flags.Columns = strings.Split(columns, ",")
	}
	return &flags, nil
}

type Config struct {
	BaseURL   string `toml:"base_url"`   // default: yahoo.URL
	Proxy     string `toml:"proxy"`      // proxy URL, if any
	Timeout   string `toml:"timeout"`    // per request; default: "30s"
	UserAgent string `toml:"user_agent"` // default: yahoo.DefaultUserAgent
	PageSize  int    `toml:"page_size"`  // default: yahoo.MaxPageSize
}

func parseConfig(filePath string) (*Config, error) {
	var c Config
	if filePath == "" {
		return &c, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

// httpClient creates an HTTP client with the configured proxy and timeout.
// The timeout defaults to yahoo.DefaultTimeout.
func (c *Config) httpClient() (*http.Client, error) {
	client := http.Client{Timeout: yahoo.DefaultTimeout}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return nil, errors.Annotate(err, "invalid timeout '%s'", c.Timeout)
		}
		client.Timeout = d
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return nil, errors.Annotate(err, "invalid proxy URL '%s'", c.Proxy)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
	return &client, nil
}

// setupContext injects the HTTP and Yahoo clients into the context.
func setupContext(ctx context.Context, c *Config) (context.Context, error) {
	client, err := c.httpClient()
	if err != nil {
		return nil, errors.Annotate(err, "failed to create HTTP client")
	}
	ctx = fetch.UseClient(ctx, client)
	return yahoo.UseClient(ctx, yahoo.NewClient(c.BaseURL, c.UserAgent)), nil
}

func writeTable(tbl *table.Table, flags *Flags, w io.Writer) error {
	p := table.Params{Rows: flags.Rows}
	switch flags.Format {
	case "csv":
		return tbl.WriteCSV(w, p)
	case "json":
		return tbl.WriteJSON(w, p)
	}
	return tbl.WriteText(w, p)
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	ctx, err = setupContext(ctx, config)
	if err != nil {
		return err
	}
	var opts []etf.Option
	if config.PageSize > 0 {
		opts = append(opts, etf.PageSize(config.PageSize))
	}
	f := etf.NewFetcher(flags.Market, opts...)

	var tbl *table.Table
	switch flags.Show {
	case "summary":
		tbl, err = f.SummaryTable(ctx)
	case "status":
		tbl, err = f.StatusTable(ctx)
	default:
		tbl, err = f.Table(ctx, flags.Columns...)
	}
	if err != nil {
		return errors.Annotate(err, "failed to fetch %s", flags.Show)
	}
	if flags.Show != "etfs" && len(flags.Columns) > 0 {
		if tbl, err = tbl.Select(flags.Columns...); err != nil {
			return errors.Annotate(err, "failed to select columns")
		}
	}
	if err := writeTable(tbl, flags, w); err != nil {
		return errors.Annotate(err, "failed to print %s", flags.Show)
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
