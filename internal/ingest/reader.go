package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file types ReadDocument cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// maxDocumentBytes caps how much of a document is read.
const maxDocumentBytes = 16 << 20

// SupportedExtension reports whether ReadDocument accepts name.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".csv", ".tsv":
		return true
	}
	return false
}

// ReadDocument returns the text content of a document. CSV and TSV rows are
// rewritten as tab-separated lines so the tabular mode picks them up; rows
// with more than two columns keep their first two.
func ReadDocument(name string, r io.Reader) (string, error) {
	r = io.LimitReader(r, maxDocumentBytes)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".md":
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(data), nil
	case ".csv", ".tsv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		if ext == ".tsv" {
			cr.Comma = '\t'
		}
		records, err := cr.ReadAll()
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", name, err)
		}
		var b strings.Builder
		for _, rec := range records {
			if len(rec) < 2 {
				continue
			}
			q := strings.ReplaceAll(strings.TrimSpace(rec[0]), "\t", " ")
			a := strings.ReplaceAll(strings.TrimSpace(rec[1]), "\t", " ")
			a = strings.ReplaceAll(a, "\n", " ")
			q = strings.ReplaceAll(q, "\n", " ")
			b.WriteString(q + "\t" + a + "\n")
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}
