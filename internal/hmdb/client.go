// Package hmdb looks up metabolites on the Human Metabolome Database by
// scraping its public search and metabolite pages.
package hmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/biomonlab/chemtable/internal/scrape"
	"github.com/biomonlab/chemtable/pkg/enrich"
)

const DefaultBaseURL = "https://hmdb.ca"

type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: scrape.NewClient(), baseURL: baseURL}
}

// LookupID resolves a CAS registry number to an HMDB accession via the
// unearth search page. The search query is the quoted CAS number, so partial
// matches do not leak in.
func (c *Client) LookupID(ctx context.Context, cas string) (string, error) {
	cas = strings.Trim(strings.TrimSpace(cas), "'")
	if cas == "" {
		return "", &enrich.PermanentError{Err: errors.New("empty CAS number")}
	}

	link := fmt.Sprintf(
		"%s/unearth/q?utf8=%%E2%%9C%%93&query=%s&searcher=metabolites&button=",
		c.baseURL,
		url.QueryEscape(`"`+cas+`"`),
	)
	doc, err := scrape.FetchDocument(ctx, c.http, link)
	if err != nil {
		return "", err
	}

	anchor := doc.Find(".result-link a").First()
	href, ok := anchor.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		slog.DebugContext(ctx, "hmdb search had no result link", "cas", cas)
		return "", fmt.Errorf("cas %s: %w", cas, enrich.ErrNotFound)
	}

	parts := strings.Split(strings.TrimRight(href, "/"), "/")
	id := parts[len(parts)-1]
	if id == "" {
		return "", fmt.Errorf("cas %s: %w", cas, enrich.ErrNotFound)
	}
	slog.DebugContext(ctx, "resolved hmdb id", "cas", cas, "hmdb_id", id)
	return id, nil
}

// LookupStatus fetches the curation status label from a metabolite page.
// The returned label is raw; callers normalize it through a StatusPolicy.
func (c *Client) LookupStatus(ctx context.Context, hmdbID string) (string, error) {
	hmdbID = strings.TrimSpace(hmdbID)
	if hmdbID == "" {
		return "", &enrich.PermanentError{Err: errors.New("empty HMDB id")}
	}

	link := c.baseURL + "/metabolites/" + url.PathEscape(hmdbID)
	doc, err := scrape.FetchDocument(ctx, c.http, link)
	if err != nil {
		return "", err
	}

	var status string
	doc.Find("th").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "Status" {
			return true
		}
		status = strings.TrimSpace(s.Next().Text())
		return false
	})
	if status == "" {
		return "", fmt.Errorf("hmdb %s: %w", hmdbID, enrich.ErrNotFound)
	}
	return status, nil
}

// IDLookup adapts LookupID to the enrichment runner.
func (c *Client) IDLookup() enrich.Lookup {
	return enrich.LookupFunc(c.LookupID)
}

// StatusLookup adapts LookupStatus, canonicalizing labels through the policy.
func (c *Client) StatusLookup(policy StatusPolicy) enrich.Lookup {
	return enrich.LookupFunc(func(ctx context.Context, hmdbID string) (string, error) {
		raw, err := c.LookupStatus(ctx, hmdbID)
		if err != nil {
			return "", err
		}
		return policy.Canonical(raw), nil
	})
}
