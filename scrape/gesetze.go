// Copyright 2025 Normenwerk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scrape downloads statute documents from gesetze-im-internet.de.
package scrape

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/normenwerk/normstore/core"
)

const (
	// DefaultBaseURL is the publication root for German federal law.
	DefaultBaseURL = "https://www.gesetze-im-internet.de"

	defaultUserAgent = "normstore/1.0"
	defaultTimeout   = 60 * time.Second
)

// ErrDocumentNotFound indicates the remote site has no document for the
// requested code.
var ErrDocumentNotFound = errors.New("document not found")

// FetchError indicates a download or archive failure other than a missing
// document.
type FetchError struct {
	Code   string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Code, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the publication root, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client fetches statute documents over HTTP. Each code is published as a
// zip archive holding a single XML file at {base}/{code}/xml.zip.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

// NewClient creates a Client with sane defaults for the public site.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDocument downloads the archive for code and returns the raw XML of
// its first entry. Returns ErrDocumentNotFound when the site answers 404.
func (c *Client) FetchDocument(ctx context.Context, code string) ([]byte, error) {
	if err := core.ValidateCode(code); err != nil {
		return nil, &FetchError{Code: code, Reason: "invalid code", Err: err}
	}

	url := fmt.Sprintf("%s/%s/xml.zip", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "building request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Code: code, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "reading response", Err: err}
	}

	return extractFirstEntry(code, archive)
}

func extractFirstEntry(code string, archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "invalid archive", Err: err}
	}
	if len(reader.File) == 0 {
		return nil, &FetchError{Code: code, Reason: "empty archive"}
	}

	f, err := reader.File[0].Open()
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "opening archive entry", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &FetchError{Code: code, Reason: "reading archive entry", Err: err}
	}
	return data, nil
}
