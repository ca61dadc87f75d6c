package opds

import (
	"encoding/xml"
	"strings"
	"testing"

	"folio/internal/database"
	"folio/internal/formats"
)

func TestFeedStructure(t *testing.T) {
	out, err := NewFeed("urn:uuid:all", "Folio").
		Author("folio").
		SelfLink("/opds/all").
		StartLink("/opds").
		SearchLink("/opensearch.xml").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		xml.Header,
		`xmlns="http://www.w3.org/2005/Atom"`,
		`xmlns:opds="http://opds-spec.org/2010/catalog"`,
		`xmlns:dc="http://purl.org/dc/terms/"`,
		`<id>urn:uuid:all</id>`,
		`<title>Folio</title>`,
		`<name>folio</name>`,
		`rel="self"`,
		`rel="start"`,
		`rel="search"`,
		`type="application/opensearchdescription+xml"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("feed missing %q:\n%s", want, doc)
		}
	}

	// The output must stay well-formed XML.
	var parsed Feed
	if err := xml.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if parsed.ID != "urn:uuid:all" {
		t.Errorf("round-tripped id = %q", parsed.ID)
	}
}

func TestBookEntry(t *testing.T) {
	book := &database.Book{
		ID:          "7b2e9f00-0000-5000-8000-000000000001",
		Title:       "Space Saga",
		Authors:     []string{"A. Writer", "B. Artist"},
		Description: "Volume one of the saga.",
		Publisher:   "Orbit House",
		Language:    "en",
		ISBN:        "9781234567897",
		Series:      "Saga",
		SeriesIndex: 1,
		Tags:        []string{"science fiction"},
		Format:      formats.FormatEPUB,
		UpdatedAt:   1700000000,
	}

	out, err := NewFeed("urn:uuid:all", "Folio").BookEntry(book, "").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<id>urn:uuid:7b2e9f00-0000-5000-8000-000000000001</id>`,
		`rel="http://opds-spec.org/acquisition"`,
		`href="/books/7b2e9f00-0000-5000-8000-000000000001/download.epub"`,
		`type="application/epub+zip"`,
		`rel="http://opds-spec.org/image"`,
		`rel="http://opds-spec.org/image/thumbnail"`,
		`type="image/png"`,
		`<dc:identifier>urn:isbn:9781234567897</dc:identifier>`,
		`<dc:language>en</dc:language>`,
		`<dc:publisher>Orbit House</dc:publisher>`,
		`<name>A. Writer</name>`,
		`<name>B. Artist</name>`,
		`term="Saga"`,
		`label="Saga #1"`,
		`rel="related"`,
		`href="/catalog/search?q=Saga"`,
		`term="science fiction"`,
		`Volume one of the saga.`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("entry missing %q:\n%s", want, doc)
		}
	}
}

func TestBookEntryMinimal(t *testing.T) {
	book := &database.Book{
		ID:        "min-id",
		Title:     "Bare",
		Format:    formats.FormatTXT,
		UpdatedAt: 1700000000,
	}

	out, err := NewFeed("urn:uuid:all", "Folio").BookEntry(book, "").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	doc := string(out)

	for _, reject := range []string{"dc:identifier", "<summary", "<category", `rel="related"`} {
		if strings.Contains(doc, reject) {
			t.Errorf("minimal entry should not contain %q:\n%s", reject, doc)
		}
	}
	if !strings.Contains(doc, `href="/books/min-id/download.txt"`) {
		t.Error("missing acquisition link")
	}
}

func TestBookEntrySeriesQueryEscaped(t *testing.T) {
	book := &database.Book{
		ID:        "esc-id",
		Title:     "Tome & Tales <1>",
		Series:    "Tome & Tales",
		Format:    formats.FormatEPUB,
		UpdatedAt: 1700000000,
	}

	out, err := NewFeed("urn:uuid:all", "Folio").BookEntry(book, "https://books.example").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	doc := string(out)

	if !strings.Contains(doc, `https://books.example/catalog/search?q=Tome+%26+Tales`) {
		t.Errorf("series search link not query-escaped:\n%s", doc)
	}
	if strings.Contains(doc, "<1>") {
		t.Error("title not XML-escaped")
	}
	if !strings.Contains(doc, "Tome &amp; Tales &lt;1&gt;") {
		t.Errorf("expected escaped title in output:\n%s", doc)
	}
}

func TestNavigationEntry(t *testing.T) {
	out, err := NewFeed("urn:uuid:root", "Folio").
		NavigationEntry("urn:uuid:recent", "Recently Added", "The newest books", "/opds/recent").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<id>urn:uuid:recent</id>`,
		`<title>Recently Added</title>`,
		`rel="subsection"`,
		`href="/opds/recent"`,
		`type="application/atom+xml;profile=opds-catalog;kind=acquisition"`,
		`The newest books`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("navigation entry missing %q:\n%s", want, doc)
		}
	}
}

func TestOpenSearch(t *testing.T) {
	out, err := OpenSearch("Folio", "https://books.example")
	if err != nil {
		t.Fatalf("OpenSearch() error = %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<OpenSearchDescription`,
		`xmlns="http://a9.com/-/spec/opensearch/1.1/"`,
		`<ShortName>Folio</ShortName>`,
		`template="https://books.example/catalog/search?q={searchTerms}"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("opensearch missing %q:\n%s", want, doc)
		}
	}
}
