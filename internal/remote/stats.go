package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Count is one row of the server statistics table.
type Count struct {
	Count   string
	Percent string
}

// Stats summarizes task progress across all participants.
type Stats struct {
	Pending   Count
	Claimed   Count
	Uploading Count
	Done      Count
}

// Stats fetches and parses the statistics page.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	status, body, err := c.do(req, "stats")
	if err != nil {
		return Stats{}, err
	}
	if status != http.StatusOK {
		return Stats{}, fmt.Errorf("stats: unexpected HTTP status %d", status)
	}
	return ParseStats(body)
}

// ParseStats extracts the first four rows of the element with id "counts".
// Each row holds a count cell followed by a percentage cell.
func ParseStats(page []byte) (Stats, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return Stats{}, fmt.Errorf("stats: parse page: %w", err)
	}
	counts := findByID(doc, "counts")
	if counts == nil {
		return Stats{}, fmt.Errorf("stats: counts table not found")
	}

	var rows []Count
	for _, tr := range rowsOf(counts) {
		cells := cellsOf(tr)
		if len(cells) < 2 {
			continue
		}
		rows = append(rows, Count{Count: cells[0], Percent: cells[1]})
	}
	if len(rows) < 4 {
		return Stats{}, fmt.Errorf("stats: expected 4 rows, found %d", len(rows))
	}
	return Stats{Pending: rows[0], Claimed: rows[1], Uploading: rows[2], Done: rows[3]}, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// rowsOf returns the table rows under n, looking through the implicit tbody
// the parser inserts but not into nested tables.
func rowsOf(n *html.Node) []*html.Node {
	var rows []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, c)
		case atom.Tbody, atom.Thead, atom.Tfoot:
			rows = append(rows, rowsOf(c)...)
		}
	}
	return rows
}

func cellsOf(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, strings.TrimSpace(textContent(c)))
		}
	}
	return cells
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
