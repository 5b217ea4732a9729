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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server.
const URL = "https://query1.finance.yahoo.com"

// DefaultUserAgent is sent with every request unless overridden. The API
// rejects requests without a browser-like agent.
const DefaultUserAgent = "Mozilla/5.0"

// DefaultTimeout of a request when the context carries no HTTP client.
const DefaultTimeout = 30 * time.Second

// maintenanceMarker is the text of the placeholder page served instead of
// data while the site is under maintenance.
const maintenanceMarker = "Will be right back"

// ErrServiceUnavailable is returned when the server responds with its
// maintenance page.
var ErrServiceUnavailable = errors.Reason(
	"Yahoo! Finance is currently down, please try again later")

// Client for querying Yahoo! Finance.
type Client struct {
	baseURL   string // the base URL of the server
	userAgent string
}

// NewClient creates a new client. Empty arguments select URL and
// DefaultUserAgent respectively.
func NewClient(baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = URL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// BaseURL of the server this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient injects the client into the context. A nil client is replaced by
// the default one.
func UseClient(ctx context.Context, c *Client) context.Context {
	if c == nil {
		c = NewClient("", "")
	}
	return context.WithValue(ctx, clientContextKey, c)
}

// httpClient returns the HTTP client from the context, or a new one with
// DefaultTimeout.
func httpClient(ctx context.Context) *http.Client {
	if c := fetch.GetClient(ctx); c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// fetchJSON sends a GET request to the path relative to the client's base URL
// and decodes the JSON response into v. The request is sent once, without
// retries. The maintenance page results in ErrServiceUnavailable regardless of
// the response status. A body which is not valid JSON, or does not decode into
// v, is logged and reported by returning false with a nil error; the contents
// of v must then be discarded.
func fetchJSON(ctx context.Context, path string, query url.Values, v any) (bool, error) {
	client := GetClient(ctx)
	if client == nil {
		return false, errors.Reason("no client in context")
	}
	uri := client.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return false, errors.Annotate(err, "failed to create request for %s", uri)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("User-Agent", client.userAgent)

	resp, err := httpClient(ctx).Do(req)
	if err != nil {
		return false, errors.Annotate(err, "failed to fetch URL %s", uri)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, errors.Annotate(err, "failed to read response from %s", uri)
	}
	if bytes.Contains(body, []byte(maintenanceMarker)) {
		return false, errors.Annotate(ErrServiceUnavailable, "GET %s", uri)
	}
	if !fetch.ResponseOK(resp) {
		return false, errors.Reason("GET %s: response code %s, body: %.200s",
			uri, resp.Status, string(body))
	}
	if !json.Valid(body) {
		logging.Errorf(ctx, "received malformed data from %s", uri)
		logging.Debugf(ctx, "response body: %.200s", string(body))
		return false, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		logging.Errorf(ctx, "failed to decode data from %s", uri)
		logging.Debugf(ctx, "%T: %s", err, err.Error())
		return false, nil
	}
	return true, nil
}
