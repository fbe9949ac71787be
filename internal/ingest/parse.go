// Package ingest turns an uploaded CSV of canonical names and variants into a
// full replacement of the cluster and app name collections.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/appdedupe/appdedupe/internal/models"
)

var ErrInvalidCSV = errors.New("invalid CSV")

var (
	canonicalHeaders = []string{"canonical name", "standardized_app"}
	variantHeaders   = []string{"variants", "similar_app_names"}
)

// Row is one accepted CSV record. Line is the 1-based line it starts on.
type Row struct {
	Line      int
	Canonical string
	Variants  []string
}

type Parsed struct {
	Rows     []Row
	Skipped  []models.SkippedRow
	RowsRead int
}

// Parse reads the whole buffer before returning, so a syntax error anywhere
// rejects the upload.
func Parse(data []byte) (*Parsed, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	index := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	canonCols := columns(index, canonicalHeaders)
	if len(canonCols) == 0 {
		return nil, fmt.Errorf("%w: no %q or %q column", ErrInvalidCSV, canonicalHeaders[0], canonicalHeaders[1])
	}
	variantCols := columns(index, variantHeaders)

	out := &Parsed{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		out.RowsRead++
		line, _ := r.FieldPos(0)

		canonical := firstNonEmpty(rec, canonCols)
		if canonical == "" {
			out.Skipped = append(out.Skipped, models.SkippedRow{Row: line, Reason: "missing canonical name"})
			continue
		}
		out.Rows = append(out.Rows, Row{
			Line:      line,
			Canonical: canonical,
			Variants:  ParseVariants(firstNonEmpty(rec, variantCols)),
		})
	}
	return out, nil
}

func columns(index map[string]int, names []string) []int {
	var cols []int
	for _, n := range names {
		if i, ok := index[n]; ok {
			cols = append(cols, i)
		}
	}
	return cols
}

func firstNonEmpty(rec []string, cols []int) string {
	for _, i := range cols {
		if i < len(rec) {
			if v := strings.TrimSpace(rec[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParseVariants reads a variants cell. A bracketed cell is a list literal
// whose single quotes are read as double quotes; if it is not valid JSON the
// bracket contents are one variant. Anything else is a comma separated list.
// Empty entries are dropped.
func ParseVariants(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	var parts []string
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &parts); err != nil {
			parts = []string{s[1 : len(s)-1]}
		}
	} else {
		parts = strings.Split(s, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
