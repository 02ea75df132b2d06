package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Kind is the declared format of an import source.
type Kind string

const (
	// KindText is tab-separated data (.txt). Falls back to single-space
	// separation when tabs yield fewer than two columns.
	KindText Kind = "text"

	// KindCSV is comma-separated data (.csv). Falls back to semicolons.
	KindCSV Kind = "csv"
)

// ErrUnknownKind is returned when the declared kind is neither text nor
// csv. The file is not opened in that case.
var ErrUnknownKind = errors.New("unknown data type")

// ReadError reports a low-level I/O failure while reading the source.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read %s: I/O error: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// OpenError reports a source that could be read but not parsed as
// delimited text (bad encoding, malformed quoting, empty file).
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DelimiterError reports a source that parsed to fewer than two columns
// under every candidate delimiter for its kind. Sonification needs at
// least an x and a y series, so single-column tables are rejected.
type DelimiterError struct {
	Kind  Kind
	Tried []rune
}

func (e *DelimiterError) Error() string {
	quoted := make([]string, len(e.Tried))
	for i, d := range e.Tried {
		quoted[i] = strconv.Quote(string(d))
	}
	return fmt.Sprintf("delimiter not recognized: %s separator must be %s",
		e.Kind, strings.Join(quoted, " or "))
}

// kindDelimiters returns the ordered candidate delimiters for a kind,
// primary first.
func kindDelimiters(kind Kind) ([]rune, error) {
	switch kind {
	case KindText:
		return []rune{'\t', ' '}, nil
	case KindCSV:
		return []rune{',', ';'}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
}

// Import reads the file at path and parses it according to the declared
// kind. It tries the kind's primary delimiter first and falls back to the
// secondary one when the result has fewer than two columns. The kind is
// validated before any file access.
func Import(path string, kind Kind) (*Table, error) {
	delims, err := kindDelimiters(kind)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	return importBytes(data, path, kind, delims)
}

// ImportReader parses delimited data from r. Used for uploads, where the
// source never touches the filesystem. name is only used in diagnostics.
func ImportReader(r io.Reader, name string, kind Kind) (*Table, error) {
	delims, err := kindDelimiters(kind)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{Path: name, Err: err}
	}

	return importBytes(data, name, kind, delims)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// importBytes runs the delimiter ladder: candidates are tried in order and
// the first structurally valid (>=2 columns) parse wins.
func importBytes(data []byte, name string, kind Kind, delims []rune) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	for _, delim := range delims {
		rows, err := parseDelimited(data, delim)
		if err != nil {
			return nil, &OpenError{Path: name, Err: err}
		}
		if len(rows) == 0 {
			return nil, &OpenError{Path: name, Err: errors.New("no data in file")}
		}

		width := maxWidth(rows)
		if width < 2 {
			continue
		}
		return build(rows, width), nil
	}

	return nil, &DelimiterError{Kind: kind, Tried: delims}
}

// parseDelimited reads all records with the given field separator. Rows
// may have varying widths at this stage; build squares them off.
func parseDelimited(data []byte, delim rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func maxWidth(rows [][]string) int {
	w := 0
	for _, row := range rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// build assembles the final table: rows are padded to a rectangular grid,
// a missing header row is replaced with fabricated ColumnN labels, and
// every label is stripped of spaces.
func build(rows [][]string, width int) *Table {
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}

	var labels []string
	var data [][]string
	if isHeaderRow(rows[0]) {
		labels = rows[0]
		data = rows[1:]
	} else {
		labels = make([]string, width)
		for i := range labels {
			labels[i] = "Column" + strconv.Itoa(i)
		}
		data = rows
	}

	sanitized := make([]string, len(labels))
	for i, l := range labels {
		sanitized[i] = sanitizeLabel(l)
	}

	return &Table{Labels: sanitized, Rows: data}
}

// isHeaderRow reports whether the first parsed row is a header line: a row
// qualifies when none of its non-empty cells parses as a number. A fully
// numeric first row is data, so generic labels get fabricated for it.
func isHeaderRow(row []string) bool {
	nonEmpty := 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
	}
	return nonEmpty > 0
}

// sanitizeLabel removes space characters so labels are identifier-safe for
// downstream consumers. Idempotent: a sanitized label passes through
// unchanged.
func sanitizeLabel(label string) string {
	return strings.ReplaceAll(label, " ", "")
}
