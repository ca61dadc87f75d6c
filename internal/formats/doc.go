// Package formats detects book container formats and extracts metadata
// and cover art from them.
//
// A Format is detected from the file extension alone; content sniffing is
// never performed. Each format has a Handler that knows how to pull
// title, authors, series, page count and a cover image out of the
// container:
//
//	format, ok := formats.FromPath(path)
//	if !ok {
//	    // not a recognized book file
//	}
//	meta, err := formats.HandlerFor(format).Extract(ctx, path)
//
// Handlers are forgiving: a field that cannot be extracted is simply left
// at its zero value, and formats without a real parser (MOBI, AZW, plain
// text, HTML, Markdown) fall back to a title derived from the filename.
// Cover bytes returned in Metadata.Cover are always PNG encoded,
// regardless of the image format stored inside the container.
//
// PDF extraction shells out to the poppler utilities (pdfinfo and
// pdftoppm). When they are not installed the PDF handler degrades to
// filename-derived metadata instead of failing.
package formats
