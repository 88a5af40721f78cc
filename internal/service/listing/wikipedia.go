// Package listing reads index constituent symbols from public HTML tables.
package listing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	pkghttp "TickerPulse/pkg/http"
)

// TableSpec locates a symbol column: the zero-based table index in document
// order and the header text of the column.
type TableSpec struct {
	Name   string
	URL    string
	Table  int
	Column string
}

// WikipediaSource scrapes one constituents table.
type WikipediaSource struct {
	spec   TableSpec
	client *pkghttp.Client
}

var _ drepo.ListingSource = (*WikipediaSource)(nil)

func NewWikipediaSource(spec TableSpec, client *pkghttp.Client) *WikipediaSource {
	return &WikipediaSource{spec: spec, client: client}
}

// NewWikipediaSources builds one source per table sharing the client.
func NewWikipediaSources(specs []TableSpec, client *pkghttp.Client) []drepo.ListingSource {
	out := make([]drepo.ListingSource, 0, len(specs))
	for _, s := range specs {
		out = append(out, NewWikipediaSource(s, client))
	}
	return out
}

func (s *WikipediaSource) Name() string { return s.spec.Name }

// FetchSymbols returns the column values with class separators written as dashes.
func (s *WikipediaSource) FetchSymbols(ctx context.Context) ([]string, error) {
	var body []byte
	if err := s.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     s.spec.URL,
		Headers: map[string]string{"Accept": "text/html"},
	}, &body); err != nil {
		return nil, fmt.Errorf("listing %s: %w: %w", s.spec.Name, models.ErrDiscoverySourceFailure, err)
	}

	symbols, err := ParseTable(bytes.NewReader(body), s.spec.Table, s.spec.Column)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w: %w", s.spec.Name, models.ErrDiscoverySourceFailure, err)
	}
	return symbols, nil
}

// ParseTable extracts one column of the n-th table in the document.
func ParseTable(r io.Reader, table int, column string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []*html.Node
	collect(doc, atom.Table, &tables)
	if table < 0 || table >= len(tables) {
		return nil, fmt.Errorf("table %d not found (%d tables)", table, len(tables))
	}

	var rows []*html.Node
	collectRows(tables[table], &rows)

	col := -1
	var out []string
	for _, row := range rows {
		cells := cellsOf(row)
		if col < 0 {
			for i, c := range cells {
				if strings.EqualFold(textOf(c), column) {
					col = i
					break
				}
			}
			continue
		}
		if col >= len(cells) {
			continue
		}
		sym := strings.ToUpper(strings.ReplaceAll(textOf(cells[col]), ".", "-"))
		if sym != "" {
			out = append(out, sym)
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	return out, nil
}

func collect(n *html.Node, a atom.Atom, out *[]*html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == a {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, a, out)
	}
}

// collectRows gathers the table's rows without descending into nested tables.
func collectRows(n *html.Node, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			*out = append(*out, c)
		case atom.Table:
		default:
			collectRows(c, out)
		}
	}
}

func cellsOf(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}
	return cells
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Sup:
			// footnote markers
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
