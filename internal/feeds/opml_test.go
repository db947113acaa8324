package feeds

import (
	"strings"
	"testing"
)

func TestParseOPMLNestedOutlines(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="Plain" xmlUrl="https://plain.example.com/rss"/>
    <outline text="Tech">
      <outline text="Go Blog" title="The Go Blog" type="rss" xmlUrl="https://go.dev/blog/feed.atom"/>
      <outline text="No URL Here"/>
    </outline>
  </body>
</opml>`

	got, err := ParseOPML(doc)
	if err != nil {
		t.Fatalf("ParseOPML failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 feeds, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://plain.example.com/rss" || got[0].Title != "Plain" {
		t.Errorf("first entry wrong: %+v", got[0])
	}
	if got[1].URL != "https://go.dev/blog/feed.atom" || got[1].Title != "The Go Blog" {
		t.Errorf("nested entry wrong: %+v", got[1])
	}
}

func TestParseOPMLInvalid(t *testing.T) {
	if _, err := ParseOPML("not xml at all <"); err == nil {
		t.Fatal("expected error for invalid document")
	}
}

func TestExportOPMLRoundtrip(t *testing.T) {
	entries := []OutlineFeed{
		{URL: "https://one.example.com/rss", Title: "One"},
		{URL: "https://two.example.com/rss", Title: "Two"},
	}

	data, err := ExportOPML("suprss feeds", entries)
	if err != nil {
		t.Fatalf("ExportOPML failed: %v", err)
	}
	if !strings.Contains(string(data), `version="2.0"`) {
		t.Errorf("missing opml version: %s", data)
	}

	back, err := ParseOPML(string(data))
	if err != nil {
		t.Fatalf("exported document did not parse: %v", err)
	}
	if len(back) != 2 || back[0] != entries[0] || back[1] != entries[1] {
		t.Errorf("roundtrip mismatch: %+v", back)
	}
}
