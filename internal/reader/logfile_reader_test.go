package reader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTestLog(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestTextFileReaderReadsAllLines(t *testing.T) {
	dir := t.TempDir()
	writeTestLog(t, dir, "a.log", []string{"line1", "line2"})
	writeTestLog(t, dir, "b.log", []string{"line3"})

	tr, err := NewTextFileReader(filepath.Join(dir, "*.log"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	var got []string
	for {
		v, err := tr.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v.(string))
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestLogfileReaderNoTimestampsPassesRawLines(t *testing.T) {
	dir := t.TempDir()
	writeTestLog(t, dir, "a.log", []string{`{"data_id":"x","timestamp":1,"fields":{"a":1}}`})

	lr, err := NewLogfileReader(filepath.Join(dir, "*.log"), false)
	if err != nil {
		t.Fatal(err)
	}
	v, err := lr.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("expected a line back")
	}
}

func TestLogfileReaderEOFPersists(t *testing.T) {
	dir := t.TempDir()
	writeTestLog(t, dir, "a.log", []string{"one"})

	lr, err := NewLogfileReader(filepath.Join(dir, "*.log"), false)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := lr.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := lr.Read(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if _, err := lr.Read(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF to persist, got %v", err)
	}
}
