package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"folio/internal/logging"
	"folio/internal/opds"

	"github.com/google/uuid"
)

// recentFeedSize bounds the /catalog/recent acquisition feed.
const recentFeedSize = 50

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>%[1]s</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 600px; margin: 2rem auto; padding: 0 1rem; }
        h1 { color: #333; }
        a { color: #0066cc; }
        .stats { background: #f5f5f5; padding: 1rem; border-radius: 8px; margin: 1rem 0; }
        code { background: #e8e8e8; padding: 0.2rem 0.4rem; border-radius: 4px; }
    </style>
</head>
<body>
    <h1>&#128218; %[1]s</h1>
    <div class="stats">
        <p><strong>%[2]d</strong> books in library</p>
    </div>
    <h2>OPDS Catalog</h2>
    <p>Add this URL to your e-reader's OPDS catalog:</p>
    <p><code>/catalog</code></p>
    <h2>Links</h2>
    <ul>
        <li><a href="/catalog">OPDS Catalog (XML)</a></li>
        <li><a href="/opensearch.xml">OpenSearch Description</a></li>
        <li><a href="/api/stats">API Stats (JSON)</a></li>
    </ul>
</body>
</html>`

// Index serves the human-facing landing page with the catalog URL readers
// should be pointed at.
func (h *Handlers) Index(w http.ResponseWriter, _ *http.Request) {
	title := template.HTMLEscapeString(h.config.CatalogTitle)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, title, h.mirror.Count())
}

// OpenSearch serves the search description document referenced by the
// catalog root's search link.
func (h *Handlers) OpenSearch(w http.ResponseWriter, r *http.Request) {
	xml, err := opds.OpenSearch(h.config.CatalogTitle, h.baseURL())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", opds.MimeOpenSearch)
	if _, err := w.Write(xml); err != nil {
		logging.Error("writing opensearch document: %v", err)
	}
}

// serveFeed builds the feed XML and writes it with the given OPDS mime.
func (h *Handlers) serveFeed(w http.ResponseWriter, r *http.Request, feed *opds.FeedBuilder, mime string) {
	xml, err := feed.Build()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	if _, err := w.Write(xml); err != nil {
		logging.Error("writing OPDS feed: %v", err)
	}
}

// CatalogRoot serves the navigation feed with Recent and All subsections.
func (h *Handlers) CatalogRoot(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL()
	feed := opds.NewFeed("urn:uuid:"+uuid.NewString(), h.config.CatalogTitle).
		Author("folio").
		SelfLink(base + "/catalog").
		StartLink(base + "/catalog").
		SearchLink(base + "/opensearch.xml").
		NavigationEntry("urn:uuid:recent", "Recent Books", "Recently added books", base+"/catalog/recent").
		NavigationEntry("urn:uuid:all", "All Books", fmt.Sprintf("%d books total", h.mirror.Count()), base+"/catalog/all")

	h.serveFeed(w, r, feed, opds.MimeNavigation)
}

// CatalogRecent serves the newest books as an acquisition feed.
func (h *Handlers) CatalogRecent(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL()
	feed := opds.NewFeed("urn:uuid:recent", "Recent Books").
		SelfLink(base + "/catalog/recent").
		StartLink(base + "/catalog")

	books := h.mirror.Recent(recentFeedSize)
	for i := range books {
		feed.BookEntry(&books[i], base)
	}
	h.serveFeed(w, r, feed, opds.MimeAcquisition)
}

// CatalogAll serves the whole catalog in title order.
func (h *Handlers) CatalogAll(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL()
	feed := opds.NewFeed("urn:uuid:all", "All Books").
		SelfLink(base + "/catalog/all").
		StartLink(base + "/catalog")

	books := h.mirror.All()
	for i := range books {
		feed.BookEntry(&books[i], base)
	}
	h.serveFeed(w, r, feed, opds.MimeAcquisition)
}

// CatalogSearch serves title/author/series substring matches for ?q=.
// An empty query yields an empty feed rather than an error because some
// readers probe the search URL before offering it.
func (h *Handlers) CatalogSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	base := h.baseURL()

	feed := opds.NewFeed("urn:uuid:search:"+q, "Search: "+q).
		SelfLink(base + "/catalog/search?q=" + url.QueryEscape(q)).
		StartLink(base + "/catalog")

	books := h.mirror.Search(q)
	for i := range books {
		feed.BookEntry(&books[i], base)
	}
	h.serveFeed(w, r, feed, opds.MimeAcquisition)
}
