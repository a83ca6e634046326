// Package pubmed counts PubMed search results for chemical names by
// scraping the public search page.
package pubmed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/biomonlab/chemtable/internal/scrape"
	"github.com/biomonlab/chemtable/pkg/enrich"
)

// DefaultBaseURL is the search prefix the quoted term is appended to.
const DefaultBaseURL = "https://pubmed.ncbi.nlm.nih.gov/?term="

type Client struct {
	http    *resty.Client
	baseURL string
	// searchExpr is appended after the quoted name, e.g.
	// `+AND+(human OR blood OR urine)`. Spaces are sent as "+", like the
	// rest of the query.
	searchExpr string
}

func NewClient(baseURL, searchExpr string) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:       scrape.NewClient(),
		baseURL:    baseURL,
		searchExpr: strings.ReplaceAll(strings.TrimSpace(searchExpr), " ", "+"),
	}
}

// LookupResultCount returns the result counter shown for a quoted search of
// the chemical name (plus the configured search expression).
func (c *Client) LookupResultCount(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &enrich.PermanentError{Err: errors.New("empty chemical name")}
	}

	term := strings.ReplaceAll(name, " ", "+")
	link := c.baseURL + `("` + term + `")` + c.searchExpr
	doc, err := scrape.FetchDocument(ctx, c.http, link)
	if err != nil {
		return "", err
	}

	count := strings.TrimSpace(doc.Find("span.value").First().Text())
	if count == "" {
		return "", fmt.Errorf("name %q: %w", name, enrich.ErrNotFound)
	}
	slog.DebugContext(ctx, "pubmed result count", "name", name, "count", count)
	return count, nil
}

// CountLookup adapts the client to the enrichment runner.
func (c *Client) CountLookup() enrich.Lookup {
	return enrich.LookupFunc(c.LookupResultCount)
}
