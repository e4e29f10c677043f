package cache

import (
	"path/filepath"
	"testing"

	"github.com/oceantech/rvdaq/internal/record"
)

func TestCacheRecordAndLatest(t *testing.T) {
	c := New()
	c.CacheRecord(record.DASRecord{Timestamp: 1, Fields: map[string]any{"Heading": 10.0}})
	c.CacheRecord(record.DASRecord{Timestamp: 2, Fields: map[string]any{"Heading": 20.0}})

	tv, ok := c.Latest("Heading")
	if !ok || tv.Value.(float64) != 20.0 {
		t.Fatalf("got %+v, %v", tv, ok)
	}
}

func TestCacheOutOfOrderInsertion(t *testing.T) {
	c := New()
	c.CacheRecord(record.DASRecord{Timestamp: 5, Fields: map[string]any{"x": "late"}})
	c.CacheRecord(record.DASRecord{Timestamp: 1, Fields: map[string]any{"x": "early"}})
	c.CacheRecord(record.DASRecord{Timestamp: 3, Fields: map[string]any{"x": "mid"}})

	vals := c.Since("x", 0)
	if len(vals) != 3 {
		t.Fatalf("got %d values", len(vals))
	}
	for i := 1; i < len(vals); i++ {
		if vals[i].Timestamp < vals[i-1].Timestamp {
			t.Fatalf("values not sorted: %+v", vals)
		}
	}
}

func TestMatchingKeysWildcard(t *testing.T) {
	c := New()
	c.CacheRecord(record.DASRecord{Timestamp: 1, Fields: map[string]any{
		"S330Gyro1HeadingTrue": 1.0,
		"S330Gyro2HeadingTrue": 2.0,
		"GPSLatitude":          3.0,
	}})
	matches := c.MatchingKeys("S330Gyro*HeadingTrue")
	if len(matches) != 2 {
		t.Fatalf("got %v", matches)
	}
}

func TestSinceOrLastN(t *testing.T) {
	c := New()
	for i := 1; i <= 5; i++ {
		c.CacheRecord(record.DASRecord{Timestamp: float64(i), Fields: map[string]any{"x": i}})
	}
	// Nothing is newer than ts=100, but min_back_records=2 should still
	// surface the 2 most recent samples.
	vals := c.SinceOrLastN("x", 100, 2)
	if len(vals) != 2 {
		t.Fatalf("got %d values, want 2", len(vals))
	}
	if vals[1].Value.(int) != 5 {
		t.Fatalf("got %+v", vals)
	}
}

func TestCleanupRespectsMinBackRecords(t *testing.T) {
	c := New()
	for i := 1; i <= 10; i++ {
		c.CacheRecord(record.DASRecord{Timestamp: float64(i), Fields: map[string]any{"x": i}})
	}
	// oldest=100 would normally drop everything; min_back_records=3 keeps 3.
	c.Cleanup(100, 0, 3)
	vals := c.Since("x", 0)
	if len(vals) != 3 {
		t.Fatalf("got %d values, want 3", len(vals))
	}
}

func TestCleanupMaxRecords(t *testing.T) {
	c := New()
	for i := 1; i <= 10; i++ {
		c.CacheRecord(record.DASRecord{Timestamp: float64(i), Fields: map[string]any{"x": i}})
	}
	c.Cleanup(0, 4, 0)
	vals := c.Since("x", 0)
	if len(vals) != 4 {
		t.Fatalf("got %d values, want 4", len(vals))
	}
	if vals[3].Value.(int) != 10 {
		t.Fatalf("expected the most recent records kept, got %+v", vals)
	}
}

func TestSaveAndLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	c := New()
	c.CacheRecord(record.DASRecord{Timestamp: 1, Fields: map[string]any{"Heading": 10.0}})
	if err := c.SaveToDisk(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := filepathGlob(dir); err != nil {
		t.Fatal(err)
	}

	c2 := New()
	if err := c2.LoadFromDisk(dir); err != nil {
		t.Fatal(err)
	}
	tv, ok := c2.Latest("Heading")
	if !ok || tv.Value.(float64) != 10.0 {
		t.Fatalf("got %+v, %v", tv, ok)
	}
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}

// TestCleanupMaxRecordsThenMinBack covers spec.md §8's S6 scenario: 10
// entries, max_records=5, min_back_records=3, oldest past all 10
// entries. max_records is applied before the age cutoff, and since
// max_records(5) already exceeds min_back_records(3) it becomes the
// floor the age cutoff can't trim below — the 5 most-recent entries
// survive rather than being squeezed down to min_back_records(3).
func TestCleanupMaxRecordsThenMinBack(t *testing.T) {
	c := New()
	for i := 1; i <= 10; i++ {
		c.CacheRecord(record.DASRecord{Timestamp: float64(i), Fields: map[string]any{"x": i}})
	}
	c.Cleanup(100, 5, 3)
	vals := c.Since("x", 0)
	if len(vals) != 5 {
		t.Fatalf("got %d values, want 5", len(vals))
	}
	if vals[4].Value.(int) != 10 {
		t.Fatalf("expected the most recent records kept, got %+v", vals)
	}
}
