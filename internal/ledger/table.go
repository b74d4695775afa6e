package ledger

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// Table is a statement as read from disk: every row, metadata rows
// included, as raw cell strings. Rows may have different lengths.
type Table [][]string

// cell returns the cell at col, or "" when the row is too short.
func (t Table) cell(row, col int) string {
	if col < 0 || row >= len(t) || col >= len(t[row]) {
		return ""
	}
	return t[row][col]
}

// ReadCSV reads a CSV statement. Exports that are not valid UTF-8 are
// decoded as Windows-1255, the legacy Hebrew code page banks still use.
func ReadCSV(r io.Reader) (Table, error) {
	return readCSV(r, false)
}

// ReadCSVBackslash reads a CSV statement whose quoted fields escape quotes
// with a backslash instead of doubling them.
func ReadCSVBackslash(r io.Reader) (Table, error) {
	return readCSV(r, true)
}

func readCSV(r io.Reader, backslash bool) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		if data, err = charmap.Windows1255.NewDecoder().Bytes(data); err != nil {
			return nil, errors.Wrap(err, "decoding windows-1255 csv")
		}
	}

	if backslash {
		data = unescapeBackslashes(data)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var t Table
	for {
		cols, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading csv line %d", len(t)+1)
		}
		t = append(t, cols)
	}
	return t, nil
}

// ReadXLS reads the first sheet of a legacy Excel statement.
func ReadXLS(r io.ReadSeeker) (Table, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening xls")
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("no sheets found in xls file")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("could not get first sheet")
	}

	var t Table
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			t = append(t, nil)
			continue
		}
		cols := make([]string, row.LastCol())
		for c := range cols {
			cols[c] = row.Col(c)
		}
		t = append(t, cols)
	}
	return t, nil
}

// ReadFile reads a statement from disk, choosing the reader by extension.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening statement %s", path)
	}
	defer f.Close()

	var t Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		t, err = ReadXLS(f)
	default:
		t, err = ReadCSV(f)
	}
	return t, errors.Wrapf(err, "reading statement %s", path)
}
