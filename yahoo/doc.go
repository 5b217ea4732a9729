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

// Package yahoo implements a client for the undocumented Yahoo! Finance web
// API used by the ETF screener and the market summary pages.
//
// The API is not officially published and may change without notice. The
// client covers three endpoints: the predefined screener (e.g. TOP_ETFS_US),
// the market summary quotes and the market open / close times.
//
// The screener returns at most MaxPageSize records in a single page. Each page
// carries its offset and the total number of matching records, which allows
// paging through the complete result set. ScreenerIterator implements
// transparent paging.
//
// When Yahoo! Finance is down for maintenance, it serves a placeholder page
// instead of JSON. This is reported as ErrServiceUnavailable and is the only
// fatal condition besides transport failures. Malformed or unexpectedly
// shaped responses are logged and yield empty or partial results.
package yahoo
