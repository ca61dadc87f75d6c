// Package sdr extracts reading summaries from KOReader sidecar backups.
//
// A backup is a gzipped tar of the reader's .sdr directory, containing a
// metadata.<doctype>.lua file with the reading position. Parsing is best
// effort: the server stores the uploaded blob whether or not a summary
// could be read from it.
package sdr

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
)

// Parse pulls the last-read page and percent finished out of a sidecar
// backup. Any failure at any stage (bad gzip, no tar, no metadata file,
// unparsable values) yields nil for the affected values; Parse never
// reports an error because a backup is stored regardless.
func Parse(data []byte) (lastPage *int64, percent *float64) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			// io.EOF means no metadata file was present; anything else
			// means the archive is damaged. Either way: no summary.
			return nil, nil
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !isMetadataName(path.Base(hdr.Name)) {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}
		return parseMetadata(string(content))
	}
}

// isMetadataName matches metadata.<doctype>.lua, e.g. metadata.epub.lua.
func isMetadataName(base string) bool {
	return strings.HasPrefix(base, "metadata.") && strings.HasSuffix(base, ".lua")
}

// parseMetadata scans the lua table line by line rather than evaluating
// it; the two keys of interest always sit on their own lines in KOReader's
// serialization.
func parseMetadata(content string) (lastPage *int64, percent *float64) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, `["last_page"]`):
			if v, ok := numberAfterEquals(line); ok {
				n := int64(v)
				lastPage = &n
			}
		case strings.HasPrefix(line, `["percent_finished"]`):
			if v, ok := numberAfterEquals(line); ok {
				p := v
				percent = &p
			}
		}
	}
	return lastPage, percent
}

func numberAfterEquals(line string) (float64, bool) {
	_, val, ok := strings.Cut(line, "=")
	if !ok {
		return 0, false
	}
	val = strings.TrimSpace(val)
	val = strings.TrimSuffix(val, ",")
	val = strings.TrimSpace(val)
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
