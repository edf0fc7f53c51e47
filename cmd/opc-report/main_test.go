package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/testutil"
)

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 7, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "24h", want: now.Add(-24 * time.Hour)},
		{in: "90m", want: now.Add(-90 * time.Minute)},
		{in: "2026-07-01", want: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2026-07-01T06:30:00Z", want: time.Date(2026, 7, 1, 6, 30, 0, 0, time.UTC)},
		{in: "-1h", wantErr: true},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in, now)
			if tt.wantErr {
				testutil.AssertError(t, err)
				return
			}
			testutil.AssertNoError(t, err)
			if !got.Equal(tt.want) {
				t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	err := writeFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	})
	testutil.AssertNoError(t, err)

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	if string(data) != "hello" {
		t.Errorf("file contents = %q, want %q", data, "hello")
	}

	testutil.AssertError(t, writeFile(filepath.Join(dir, "missing", "out.txt"), func(io.Writer) error { return nil }))
}

func TestListRuns(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	testutil.AssertNoError(t, err)
	defer store.Close()

	started := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	id, err := store.StartRun("Roof", started)
	testutil.AssertNoError(t, err)

	var buf bytes.Buffer
	testutil.AssertNoError(t, listRuns(store, &buf))
	out := buf.String()
	if !strings.HasPrefix(out, id+"  2026-07-01T08:00:00Z  Roof") {
		t.Errorf("unexpected run listing: %q", out)
	}
}
