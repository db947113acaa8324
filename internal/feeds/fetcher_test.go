package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>Example Feed</title>
<description>Things happening at example.com</description>
<item>
<title>First Post</title>
<link>http://example.com/first</link>
<guid>post-1</guid>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<dc:creator>Alice</dc:creator>
<description><![CDATA[<p>Hello <b>world</b>, this is &amp; a post.</p>]]></description>
</item>
<item>
<title>Bare Post</title>
</item>
</channel>
</rss>`

func TestFetchParsesAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if res.Title != "Example Feed" || res.Description != "Things happening at example.com" {
		t.Errorf("feed metadata wrong: %q / %q", res.Title, res.Description)
	}
	if res.ETag != `"v1"` || res.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("validators not captured: %q / %q", res.ETag, res.LastModified)
	}
	if res.NotModified {
		t.Error("200 response must not report NotModified")
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}

	first := res.Items[0]
	if first.Title != "First Post" || first.Link != "http://example.com/first" || first.GUID != "post-1" {
		t.Errorf("first item wrong: %+v", first)
	}
	if first.Published == nil || first.Published.UTC().Year() != 2006 {
		t.Errorf("pubDate not parsed: %v", first.Published)
	}
	if first.Author != "Alice" {
		t.Errorf("author wrong: %q", first.Author)
	}
	if strings.Contains(first.Snippet, "<") {
		t.Errorf("snippet still contains markup: %q", first.Snippet)
	}
	if !strings.Contains(first.Snippet, "Hello world") {
		t.Errorf("snippet text wrong: %q", first.Snippet)
	}

	bare := res.Items[1]
	if bare.Published != nil || bare.GUID != "" || bare.Link != "" {
		t.Errorf("missing fields should stay empty, got %+v", bare)
	}
}

func TestFetchSendsValidatorsAndHandles304(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("If-None-Match not sent: %q", r.Header.Get("If-None-Match"))
		}
		if r.Header.Get("If-Modified-Since") != "Mon, 02 Jan 2006 15:04:05 GMT" {
			t.Errorf("If-Modified-Since not sent: %q", r.Header.Get("If-Modified-Since"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.NotModified {
		t.Fatal("expected NotModified")
	}
	if len(res.Items) != 0 {
		t.Errorf("304 must carry no items, got %d", len(res.Items))
	}
	// Stored validators survive a 304 unchanged.
	if res.ETag != `"v1"` || res.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("validators not echoed: %q / %q", res.ETag, res.LastModified)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	if _, err := f.Fetch(context.Background(), srv.URL, "", ""); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFetchUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	if _, err := f.Fetch(context.Background(), srv.URL, "", ""); err == nil {
		t.Fatal("expected error for unparseable body")
	}
}

func TestSnippetTruncation(t *testing.T) {
	f := NewFetcher(5 * time.Second)
	long := strings.Repeat("a", 2*maxSnippet)
	got := f.snippet("<p>" + long + "</p>")
	if len(got) != maxSnippet {
		t.Errorf("expected snippet of %d chars, got %d", maxSnippet, len(got))
	}
}
