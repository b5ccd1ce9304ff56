// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry is one member of a fixture archive. Names ending in "/" become directory markers.
type ZipEntry struct {
	Name string
	Body string
}

// BuildZip writes entries, in order, into an in-memory zip archive.
func BuildZip(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		if strings.HasSuffix(e.Name, "/") {
			if _, err := w.Create(e.Name); err != nil {
				t.Fatalf("failed to add directory %s: %v", e.Name, err)
			}
			continue
		}
		f, err := w.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := f.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// Files is shorthand for BuildZip with name/body pairs.
func Files(t testing.TB, kv ...string) []byte {
	t.Helper()
	if len(kv)%2 != 0 {
		t.Fatalf("Files needs name/body pairs")
	}
	entries := make([]ZipEntry, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		entries = append(entries, ZipEntry{Name: kv[i], Body: kv[i+1]})
	}
	return BuildZip(t, entries...)
}
