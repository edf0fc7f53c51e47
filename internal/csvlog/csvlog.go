// Package csvlog appends measurements to one CSV file per instrument per day.
package csvlog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/particulate.report/internal/fsutil"
	"github.com/banshee-data/particulate.report/internal/monitoring"
	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// TimestampColumn is always the first column.
const TimestampColumn = "Timestamp"

// TimestampLayout is how timestamps are written.
const TimestampLayout = "2006-01-02 15:04:05"

// Writer appends rows to <Dir>/<YYYY-MM-DD> <Name>.csv. The day is taken
// from the row's timestamp in its own location.
type Writer struct {
	FS   fsutil.FileSystem
	Dir  string
	Name string

	mu sync.Mutex
}

// NewWriter returns a Writer on the OS filesystem.
func NewWriter(dir, name string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Dir: dir, Name: name}
}

// Path returns the file a row stamped ts goes to.
func (w *Writer) Path(ts time.Time) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s %s.csv", ts.Format("2006-01-02"), w.Name))
}

// Append writes one row. A new file gets a header first. When the file's
// header lacks some of the row's columns, the file is rewritten under the
// union of both: existing columns keep their order, new ones are appended,
// and cells that never had a value stay blank. A row with no fields records
// a timestamp only, which is how a missed measurement shows up.
func (w *Writer) Append(ts time.Time, fields []opcn3.Field) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.Path(ts)
	names := make([]string, 0, len(fields)+1)
	values := make(map[string]string, len(fields)+1)
	names = append(names, TimestampColumn)
	values[TimestampColumn] = ts.Format(TimestampLayout)
	for _, f := range fields {
		if _, dup := values[f.Name]; dup {
			continue
		}
		names = append(names, f.Name)
		values[f.Name] = strconv.FormatFloat(f.Value, 'f', -1, 64)
	}

	existing, err := w.readExisting(path)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		return w.append(path, [][]string{names, row(names, values)})
	}

	header := existing[0]
	union := unionHeader(header, names)
	if len(union) != len(header) {
		monitoring.Logf("[csvlog] %s: header changed, rewriting with %d columns", path, len(union))
		if err := w.rewrite(path, header, union, existing[1:]); err != nil {
			return err
		}
	}
	return w.append(path, [][]string{row(union, values)})
}

// readExisting returns the file's records, or nil if it does not exist or
// is empty.
func (w *Writer) readExisting(path string) ([][]string, error) {
	if !w.FS.Exists(path) {
		return nil, nil
	}
	data, err := w.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func (w *Writer) rewrite(path string, oldHeader, newHeader []string, rows [][]string) error {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, newHeader)
	for _, r := range rows {
		cells := make(map[string]string, len(oldHeader))
		for i, name := range oldHeader {
			if i < len(r) {
				cells[name] = r[i]
			}
		}
		out = append(out, row(newHeader, cells))
	}
	data, err := encode(out)
	if err != nil {
		return err
	}
	if err := w.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	return nil
}

func (w *Writer) append(path string, records [][]string) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := w.FS.AppendFile(path, data, 0o644); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func row(header []string, cells map[string]string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		out[i] = cells[name]
	}
	return out
}

func unionHeader(header, names []string) []string {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	out := append([]string(nil), header...)
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
