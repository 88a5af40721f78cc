package listing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	pkghttp "TickerPulse/pkg/http"
)

const page = `<html><body>
<table class="infobox"><tr><th>Founded</th><td>1957</td></tr></table>
<table class="wikitable sortable">
<thead><tr><th>Company</th><th>Symbol<sup>[a]</sup></th></tr></thead>
<tbody>
<tr><td>Apple Inc.</td><td><a href="#">AAPL</a></td></tr>
<tr><td>Berkshire Hathaway</td><td>BRK.B</td></tr>
<tr><td>Broken row</td></tr>
<tr><td>Blank</td><td>  </td></tr>
</tbody></table>
</body></html>`

func TestParseTable(t *testing.T) {
	got, err := ParseTable(bytes.NewReader([]byte(page)), 1, "Symbol")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, got)
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable(bytes.NewReader([]byte(page)), 5, "Symbol")
	assert.Error(t, err)

	_, err = ParseTable(bytes.NewReader([]byte(page)), 1, "Ticker")
	assert.Error(t, err)
}

func TestWikipediaSource_FetchSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	client := pkghttp.NewClient()
	ok := NewWikipediaSource(TableSpec{Name: "sp500", URL: srv.URL + "/list", Table: 1, Column: "Symbol"}, client)
	syms, err := ok.FetchSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, syms)
	assert.Equal(t, "sp500", ok.Name())

	down := NewWikipediaSource(TableSpec{Name: "dow", URL: srv.URL + "/down", Table: 0, Column: "Symbol"}, client)
	_, err = down.FetchSymbols(context.Background())
	assert.ErrorIs(t, err, models.ErrDiscoverySourceFailure)
}
