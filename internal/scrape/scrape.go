// Package scrape holds the shared HTTP+HTML plumbing for the database
// lookup clients.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/biomonlab/chemtable/pkg/enrich"
)

// NewClient returns the resty client shared by one lookup service.
func NewClient() *resty.Client {
	return resty.New()
}

// FetchDocument GETs a URL and parses the body as HTML.
//
// Failures are classified for the enrichment runner: transport-level errors
// (DNS, refused connections, timeouts) are transient, HTTP 429 is transient
// with a reduced retry budget, 5xx is transient, 404 is enrich.ErrNotFound,
// and any other non-2xx status is permanent for that key.
func FetchDocument(ctx context.Context, client *resty.Client, url string) (*goquery.Document, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &enrich.TransientError{Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code == 429:
		return nil, &enrich.LimitedTransientError{
			Err:          fmt.Errorf("GET %s: rate limited (429)", url),
			ExtraRetries: 1,
		}
	case code >= 500:
		return nil, &enrich.TransientError{Err: fmt.Errorf("GET %s: status %d", url, code)}
	case code == 404:
		return nil, fmt.Errorf("GET %s: %w", url, enrich.ErrNotFound)
	case code >= 400:
		return nil, &enrich.PermanentError{Err: fmt.Errorf("GET %s: status %d", url, code)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &enrich.PermanentError{Err: fmt.Errorf("parse %s: %w", url, err)}
	}
	return doc, nil
}
