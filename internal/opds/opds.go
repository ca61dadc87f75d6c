// Package opds renders OPDS 1.2 catalog feeds (Atom with the OPDS and
// Dublin Core extensions) for e-reader clients such as KOReader.
package opds

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"folio/internal/database"
)

const (
	nsAtom = "http://www.w3.org/2005/Atom"
	nsOPDS = "http://opds-spec.org/2010/catalog"
	nsDC   = "http://purl.org/dc/terms/"

	relAcquisition = "http://opds-spec.org/acquisition"
	relImage       = "http://opds-spec.org/image"
	relThumbnail   = "http://opds-spec.org/image/thumbnail"

	// MimeNavigation and MimeAcquisition are the Content-Type values for
	// the two OPDS feed kinds.
	MimeNavigation  = "application/atom+xml;profile=opds-catalog;kind=navigation"
	MimeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	// MimeOpenSearch is the Content-Type for the search description.
	MimeOpenSearch = "application/opensearchdescription+xml"
)

// Feed is an Atom feed document. Namespace prefixes are emitted
// verbatim; encoding/xml does not manage prefix declarations itself.
type Feed struct {
	XMLName   xml.Name `xml:"feed"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsOPDS string   `xml:"xmlns:opds,attr"`
	XmlnsDC   string   `xml:"xmlns:dc,attr"`
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Updated   string   `xml:"updated"`
	Authors   []Author `xml:"author"`
	Links     []Link   `xml:"link"`
	Entries   []Entry  `xml:"entry"`
}

// Entry is one catalog item, either a navigation target or a book.
type Entry struct {
	Title      string     `xml:"title"`
	ID         string     `xml:"id"`
	Updated    string     `xml:"updated"`
	Authors    []Author   `xml:"author,omitempty"`
	Categories []Category `xml:"category,omitempty"`
	Identifier string     `xml:"dc:identifier,omitempty"`
	Language   string     `xml:"dc:language,omitempty"`
	Publisher  string     `xml:"dc:publisher,omitempty"`
	Summary    *Content   `xml:"summary,omitempty"`
	Links      []Link     `xml:"link"`
}

// Link is an Atom link element.
type Link struct {
	Rel   string `xml:"rel,attr"`
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr,omitempty"`
}

// Author is an Atom author element.
type Author struct {
	Name string `xml:"name"`
}

// Category is an Atom category element.
type Category struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr,omitempty"`
}

// Content is a typed text construct.
type Content struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

// FeedBuilder assembles a Feed.
type FeedBuilder struct {
	feed Feed
}

// NewFeed starts a feed with the given id and title, stamped now.
func NewFeed(id, title string) *FeedBuilder {
	return &FeedBuilder{feed: Feed{
		Xmlns:     nsAtom,
		XmlnsOPDS: nsOPDS,
		XmlnsDC:   nsDC,
		ID:        id,
		Title:     title,
		Updated:   time.Now().UTC().Format(time.RFC3339),
	}}
}

// Author sets the feed-level author.
func (b *FeedBuilder) Author(name string) *FeedBuilder {
	b.feed.Authors = append(b.feed.Authors, Author{Name: name})
	return b
}

// SelfLink adds the rel=self link for this feed.
func (b *FeedBuilder) SelfLink(href string) *FeedBuilder {
	b.feed.Links = append(b.feed.Links, Link{Rel: "self", Href: href, Type: MimeNavigation})
	return b
}

// StartLink adds the rel=start link back to the catalog root.
func (b *FeedBuilder) StartLink(href string) *FeedBuilder {
	b.feed.Links = append(b.feed.Links, Link{Rel: "start", Href: href, Type: MimeNavigation})
	return b
}

// SearchLink advertises the OpenSearch description document.
func (b *FeedBuilder) SearchLink(href string) *FeedBuilder {
	b.feed.Links = append(b.feed.Links, Link{Rel: "search", Href: href, Type: MimeOpenSearch})
	return b
}

// NavigationEntry adds a link-through entry pointing at another feed.
func (b *FeedBuilder) NavigationEntry(id, title, summary, href string) *FeedBuilder {
	entry := Entry{
		Title:   title,
		ID:      id,
		Updated: b.feed.Updated,
		Links: []Link{
			{Rel: "subsection", Href: href, Type: MimeAcquisition},
		},
	}
	if summary != "" {
		entry.Summary = &Content{Type: "text", Text: summary}
	}
	b.feed.Entries = append(b.feed.Entries, entry)
	return b
}

// BookEntry adds an acquisition entry for one catalog book. baseURL
// prefixes every generated href and may be empty for root-relative
// links.
func (b *FeedBuilder) BookEntry(book *database.Book, baseURL string) *FeedBuilder {
	entry := Entry{
		Title:     book.Title,
		ID:        "urn:uuid:" + book.ID,
		Updated:   time.Unix(book.UpdatedAt, 0).UTC().Format(time.RFC3339),
		Language:  book.Language,
		Publisher: book.Publisher,
		Links: []Link{
			{
				Rel:  relAcquisition,
				Href: fmt.Sprintf("%s/books/%s/download.%s", baseURL, book.ID, book.Format),
				Type: book.Format.MimeType(),
			},
			{Rel: relImage, Href: fmt.Sprintf("%s/books/%s/cover", baseURL, book.ID), Type: "image/png"},
			{Rel: relThumbnail, Href: fmt.Sprintf("%s/books/%s/thumbnail", baseURL, book.ID), Type: "image/png"},
		},
	}

	for _, name := range book.Authors {
		entry.Authors = append(entry.Authors, Author{Name: name})
	}
	if len(entry.Authors) == 0 && book.Author != "" {
		entry.Authors = append(entry.Authors, Author{Name: book.Author})
	}

	if book.ISBN != "" {
		entry.Identifier = "urn:isbn:" + book.ISBN
	}
	if book.Description != "" {
		entry.Summary = &Content{Type: "text", Text: book.Description}
	}

	if book.Series != "" {
		label := book.Series
		if book.SeriesIndex > 0 {
			label = fmt.Sprintf("%s #%s", book.Series,
				strconv.FormatFloat(book.SeriesIndex, 'f', -1, 64))
		}
		entry.Categories = append(entry.Categories, Category{Term: book.Series, Label: label})
		entry.Links = append(entry.Links, Link{
			Rel:   "related",
			Href:  fmt.Sprintf("%s/catalog/search?q=%s", baseURL, url.QueryEscape(book.Series)),
			Type:  MimeAcquisition,
			Title: "All books in " + book.Series,
		})
	}
	for _, tag := range book.Tags {
		entry.Categories = append(entry.Categories, Category{Term: tag})
	}

	b.feed.Entries = append(b.feed.Entries, entry)
	return b
}

// Build renders the feed as an XML document.
func (b *FeedBuilder) Build() ([]byte, error) {
	out, err := xml.MarshalIndent(b.feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// openSearchDescription is the /opensearch.xml document.
type openSearchDescription struct {
	XMLName        xml.Name      `xml:"OpenSearchDescription"`
	Xmlns          string        `xml:"xmlns,attr"`
	ShortName      string        `xml:"ShortName"`
	Description    string        `xml:"Description"`
	InputEncoding  string        `xml:"InputEncoding"`
	OutputEncoding string        `xml:"OutputEncoding"`
	URL            openSearchURL `xml:"Url"`
}

type openSearchURL struct {
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
}

// OpenSearch renders the search description document clients use to
// discover the {searchTerms} query template.
func OpenSearch(title, baseURL string) ([]byte, error) {
	doc := openSearchDescription{
		Xmlns:          "http://a9.com/-/spec/opensearch/1.1/",
		ShortName:      title,
		Description:    "Search the " + title + " catalog",
		InputEncoding:  "UTF-8",
		OutputEncoding: "UTF-8",
		URL: openSearchURL{
			Type:     MimeAcquisition,
			Template: baseURL + "/catalog/search?q={searchTerms}",
		},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling opensearch description: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
