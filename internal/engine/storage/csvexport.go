package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rendis/sectorscan/internal/engine/results"
	"github.com/rendis/sectorscan/internal/model"
)

// ExportStats describes the file produced by ExportToFile.
type ExportStats struct {
	Path     string
	Existing int
	Incoming int
	Written  int
	Columns  int
}

// table is a CSV held in memory with its column order.
type table struct {
	columns []string
	index   map[string]struct{}
	rows    []map[string]string
}

func newTable() *table {
	return &table{index: make(map[string]struct{})}
}

func (t *table) addColumn(name string) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = struct{}{}
	t.columns = append(t.columns, name)
}

// ExportToFile merges places into the CSV at path. Existing rows come first
// and their columns keep their position; new columns are appended. Rows are
// then deduplicated on place_id keeping the last one. The destination is
// replaced atomically and left untouched on any error or when there is
// nothing to add.
func ExportToFile(places []model.Place, path string) (ExportStats, error) {
	stats := ExportStats{Path: path, Incoming: len(places)}

	t, err := readTable(path)
	if err != nil {
		return stats, err
	}
	stats.Existing = len(t.rows)
	if len(places) == 0 {
		stats.Written = stats.Existing
		stats.Columns = len(t.columns)
		return stats, nil
	}

	for _, p := range places {
		row, cols := flattenPlace(p)
		for _, c := range cols {
			t.addColumn(c)
		}
		t.rows = append(t.rows, row)
	}

	t.rows = results.DedupLast(t.rows, func(r map[string]string) string {
		return r[model.IdentityField]
	})
	stats.Written = len(t.rows)
	stats.Columns = len(t.columns)

	if err := writeAtomic(path, t); err != nil {
		return stats, err
	}
	return stats, nil
}

// ReadCSV loads an exported file as header plus records.
func ReadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, &PersistenceError{Op: "parse", Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readTable(path string) (*table, error) {
	t := newTable()
	header, records, err := ReadCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, err
	}
	for _, h := range header {
		t.addColumn(h)
	}
	for i, rec := range records {
		if len(rec) > len(header) {
			return nil, &PersistenceError{Op: "parse", Path: path, Err: eris.Errorf("row %d has %d fields, header has %d", i+2, len(rec), len(header))}
		}
		row := make(map[string]string, len(header))
		for j, v := range rec {
			row[header[j]] = v
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func writeAtomic(path string, t *table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Op: "create temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: op, Path: path, Err: err}
	}

	if err := encodeTable(tmp, t); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func encodeTable(w io.Writer, t *table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	rec := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, c := range t.columns {
			rec[i] = row[c]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// flattenPlace turns a place into one CSV row. Nested objects become dotted
// columns, arrays are written as JSON text.
func flattenPlace(p model.Place) (map[string]string, []string) {
	row := make(map[string]string, p.Len())
	var cols []string
	for _, k := range p.Keys() {
		raw, _ := p.Raw(k)
		flattenValue(k, raw, row, &cols)
	}
	return row, cols
}

func flattenValue(prefix string, raw json.RawMessage, row map[string]string, cols *[]string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj model.Place
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if obj.Len() == 0 {
				setCell(prefix, "", row, cols)
			}
			for _, k := range obj.Keys() {
				v, _ := obj.Raw(k)
				flattenValue(prefix+"."+k, v, row, cols)
			}
			return
		}
	}
	setCell(prefix, scalarText(trimmed), row, cols)
}

func setCell(col, value string, row map[string]string, cols *[]string) {
	if _, ok := row[col]; !ok {
		*cols = append(*cols, col)
	}
	row[col] = value
}

func scalarText(raw []byte) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if raw[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return strings.TrimSpace(string(raw))
}
