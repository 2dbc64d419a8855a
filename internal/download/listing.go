package download

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// datePattern matches the YYYY-MM-DD date embedded in archive file names.
var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// FileEntry is one downloadable per-day compressed file from the archive
// directory listing.
type FileEntry struct {
	Date string // YYYY-MM-DD extracted from the file name
	Name string // file name as listed, e.g. BTCUSD2023-11-14.csv.gz
	URL  string // absolute download URL
}

// parseAnchorHrefs walks an HTML document and returns every anchor href in
// document order.
func parseAnchorHrefs(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs, nil
}

// parseSymbolListing extracts symbol subdirectory names from the archive
// index page. Symbol entries are hrefs ending with a slash.
func parseSymbolListing(r io.Reader) ([]string, error) {
	hrefs, err := parseAnchorHrefs(r)
	if err != nil {
		return nil, err
	}
	var symbols []string
	for _, href := range hrefs {
		if strings.HasSuffix(href, "/") && !strings.HasPrefix(href, "..") {
			symbols = append(symbols, strings.TrimSuffix(href, "/"))
		}
	}
	return symbols, nil
}

// parseFileListing extracts per-day compressed file entries from a symbol
// directory page. baseURL must end with a slash.
func parseFileListing(r io.Reader, baseURL string) ([]FileEntry, error) {
	hrefs, err := parseAnchorHrefs(r)
	if err != nil {
		return nil, err
	}
	var entries []FileEntry
	for _, href := range hrefs {
		if !strings.HasSuffix(href, ".csv.gz") {
			continue
		}
		entries = append(entries, FileEntry{
			Date: datePattern.FindString(href),
			Name: href,
			URL:  baseURL + href,
		})
	}
	return entries, nil
}
