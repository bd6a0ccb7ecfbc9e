package movements

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Row is one tr of the movements table body.
type Row struct {
	Classes []string
	node    *html.Node
}

// HasClass reports whether the row carries class c.
func (r Row) HasClass(c string) bool {
	return slices.Contains(r.Classes, c)
}

// Pair is a summary row and the detail row rendered right after it, if any.
type Pair struct {
	Summary Row
	Detail  *Row
}

// ParseRows parses the outer HTML of the movements table and returns the
// tr children of every tbody in document order.
func ParseRows(r io.Reader) ([]Row, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing movements table: %w", err)
	}

	var rows []Row
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if isElement(n, "tbody") {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if isElement(c, "tr") {
					rows = append(rows, Row{
						Classes: strings.Fields(attr(c, "class")),
						node:    c,
					})
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, nil
}

// PairRows attaches each detail row to the summary row immediately before it.
// Detail rows are never summaries; one with no summary before it is dropped.
func PairRows(rows []Row, detailClass string) []Pair {
	var pairs []Pair
	for i := 0; i < len(rows); i++ {
		if rows[i].HasClass(detailClass) {
			continue
		}
		p := Pair{Summary: rows[i]}
		if i+1 < len(rows) && rows[i+1].HasClass(detailClass) {
			detail := rows[i+1]
			p.Detail = &detail
			i++
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// Cells returns the trimmed text of the row's td children.
func (r Row) Cells() []string {
	var cells []string
	for c := r.node.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "td") {
			cells = append(cells, textContent(c))
		}
	}
	return cells
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll returns every descendant element named tag, in document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tag) {
			out = append(out, c)
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

func findFirst(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tag) {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent joins the node's text with runs of whitespace collapsed.
func textContent(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

// rawText concatenates every text node under n as-is.
func rawText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
