package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWriterDerivesSiblingPaths(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ads.json")

	w, err := createWriter("all", out)
	if err != nil {
		t.Fatalf("createWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	for _, name := range []string{"ads.csv", "ads.json", "ads.xlsx"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "ads.json.csv")); err == nil {
		t.Error("output extension leaked into the derived csv path")
	}
}

func TestCreateWriterSingleFormats(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []string{"csv", "json", "xlsx"} {
		out := filepath.Join(dir, "plots."+format)
		w, err := createWriter(format, out)
		if err != nil {
			t.Fatalf("createWriter(%s): %v", format, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close %s writer: %v", format, err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Errorf("expected %s output at %s: %v", format, out, err)
		}
	}

	if _, err := createWriter("parquet", filepath.Join(dir, "plots.parquet")); err == nil {
		t.Error("unsupported format should fail")
	}
}
