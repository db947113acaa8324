package feeds

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr,omitempty"`
	Head    OPMLHead `xml:"head"`
	Body    OPMLBody `xml:"body"`
}

type OPMLHead struct {
	Title string `xml:"title,omitempty"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr,omitempty"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []OPMLOutline `xml:"outline,omitempty"`
}

// OutlineFeed is one feed source extracted from an OPML document.
type OutlineFeed struct {
	URL   string
	Title string
}

// ParseOPML extracts a flat list of feed sources from an OPML document,
// walking nested folder outlines. Outlines without an xmlUrl are folders
// (or junk) and contribute nothing themselves.
func ParseOPML(doc string) ([]OutlineFeed, error) {
	var opml OPML
	if err := xml.Unmarshal([]byte(doc), &opml); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	var out []OutlineFeed
	var walk func(outlines []OPMLOutline)
	walk = func(outlines []OPMLOutline) {
		for _, outline := range outlines {
			if url := strings.TrimSpace(outline.XMLURL); url != "" {
				title := outline.Title
				if title == "" {
					title = outline.Text
				}
				out = append(out, OutlineFeed{URL: url, Title: title})
			}
			if len(outline.Outlines) > 0 {
				walk(outline.Outlines)
			}
		}
	}
	walk(opml.Body.Outlines)
	return out, nil
}

// ExportOPML renders a flat OPML 2.0 document for the given feeds.
func ExportOPML(title string, entries []OutlineFeed) ([]byte, error) {
	opml := OPML{
		Version: "2.0",
		Head:    OPMLHead{Title: title},
	}
	for _, e := range entries {
		opml.Body.Outlines = append(opml.Body.Outlines, OPMLOutline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		})
	}

	data, err := xml.MarshalIndent(opml, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OPML: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
