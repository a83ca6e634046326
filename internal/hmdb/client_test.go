package hmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biomonlab/chemtable/pkg/enrich"
)

const searchHitPage = `<html><body>
<div class="unearth-search-hit">
  <div class="result-link"><a href="/metabolites/HMDB0001426">HMDB0001426</a></div>
</div>
</body></html>`

const searchMissPage = `<html><body><div class="no-results">No results found</div></body></html>`

const metabolitePage = `<html><body>
<table>
  <tr><th>Version</th><td>5.0</td></tr>
  <tr><th>Status</th><td> Detected </td></tr>
</table>
</body></html>`

func TestLookupID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/unearth/q", r.URL.Path)
		query := r.URL.Query().Get("query")
		switch query {
		case `"50-00-0"`:
			_, _ = w.Write([]byte(searchHitPage))
		default:
			_, _ = w.Write([]byte(searchMissPage))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	t.Run("resolves the first result link", func(t *testing.T) {
		id, err := client.LookupID(context.Background(), " '50-00-0' ")
		require.NoError(t, err)
		require.Equal(t, "HMDB0001426", id)
	})

	t.Run("no result link is not found", func(t *testing.T) {
		_, err := client.LookupID(context.Background(), "123-45-6")
		require.ErrorIs(t, err, enrich.ErrNotFound)
	})

	t.Run("empty cas is permanent", func(t *testing.T) {
		_, err := client.LookupID(context.Background(), "''")
		var pe *enrich.PermanentError
		require.ErrorAs(t, err, &pe)
	})
}

func TestLookupStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metabolites/HMDB0001426":
			_, _ = w.Write([]byte(metabolitePage))
		case "/metabolites/HMDB0404040":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	t.Run("reads the status cell", func(t *testing.T) {
		status, err := client.LookupStatus(context.Background(), "HMDB0001426")
		require.NoError(t, err)
		require.Equal(t, "Detected", status)
	})

	t.Run("missing page is not found", func(t *testing.T) {
		_, err := client.LookupStatus(context.Background(), "HMDB0404040")
		require.ErrorIs(t, err, enrich.ErrNotFound)
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := client.LookupStatus(context.Background(), "HMDB0999999")
		var te *enrich.TransientError
		require.ErrorAs(t, err, &te)
	})
}

func TestStatusLookupAppliesPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(metabolitePage))
	}))
	defer srv.Close()

	lookup := NewClient(srv.URL).StatusLookup(DefaultStatusPolicy())
	status, err := lookup.Lookup(context.Background(), "HMDB0001426")
	require.NoError(t, err)
	require.Equal(t, "detected", status)
}

func TestLookupIDUnreachableHostIsTransient(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.LookupID(context.Background(), "50-00-0")
	var te *enrich.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}
