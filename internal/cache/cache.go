// Package cache implements RecordCache, the per-field time-ordered
// sample store behind the Cached Data Server, grounded on
// original_source/server/cached_data_server.py's RecordCache class.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/oceantech/rvdaq/internal/record"
)

// fieldCache holds one field's time-ordered samples under its own lock,
// so a write to one field never blocks a reader of another.
type fieldCache struct {
	mu       sync.Mutex
	values   []record.TimeValue // ascending by Timestamp
	metadata any
}

// RecordCache is a per-field time series store. Each field is guarded by
// its own mutex; a top-level mutex guards only the creation of a new
// field's entry, matching the original's lock-per-key granularity (§9
// design notes: key-granular locks).
type RecordCache struct {
	mu     sync.Mutex
	fields map[string]*fieldCache

	diskDir     string
	failedFiles map[string]bool
}

// New builds an empty RecordCache.
func New() *RecordCache {
	return &RecordCache{
		fields:      make(map[string]*fieldCache),
		failedFiles: make(map[string]bool),
	}
}

func (c *RecordCache) getOrCreate(field string) *fieldCache {
	c.mu.Lock()
	fc, ok := c.fields[field]
	if !ok {
		fc = &fieldCache{}
		c.fields[field] = fc
	}
	c.mu.Unlock()
	return fc
}

// CacheRecord adds a DASRecord's fields to the cache. A record with
// Fields adds one (Timestamp, value) sample per field; a record with
// BatchedFields (e.g. from Normalize on a batched field-dict) adds each
// field's list of (ts, value) pairs directly, matching the original's
// handling of both record shapes in one cache_record() call.
func (c *RecordCache) CacheRecord(rec record.DASRecord) {
	if rec.Metadata != nil {
		for field := range rec.Fields {
			c.setMetadata(field, rec.Metadata)
		}
		for field := range rec.BatchedFields {
			c.setMetadata(field, rec.Metadata)
		}
	}

	for field, value := range rec.Fields {
		c.addTuple(field, rec.Timestamp, value)
	}
	for field, pairs := range rec.BatchedFields {
		for _, tv := range pairs {
			c.addTuple(field, tv.Timestamp, tv.Value)
		}
	}
}

func (c *RecordCache) addTuple(field string, ts float64, value any) {
	fc := c.getOrCreate(field)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	// Fast path: values arrive in non-decreasing timestamp order, as
	// from a live feed. Fall back to an insertion sort position for
	// out-of-order batched data.
	n := len(fc.values)
	if n == 0 || fc.values[n-1].Timestamp <= ts {
		fc.values = append(fc.values, record.TimeValue{Timestamp: ts, Value: value})
		return
	}
	i := sort.Search(n, func(i int) bool { return fc.values[i].Timestamp > ts })
	fc.values = append(fc.values, record.TimeValue{})
	copy(fc.values[i+1:], fc.values[i:])
	fc.values[i] = record.TimeValue{Timestamp: ts, Value: value}
}

func (c *RecordCache) setMetadata(field string, metadata any) {
	fc := c.getOrCreate(field)
	fc.mu.Lock()
	fc.metadata = metadata
	fc.mu.Unlock()
}

// Keys returns every field name currently known to the cache.
func (c *RecordCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MatchingKeys expands a glob-style pattern ("*" = any run of
// characters) against the cache's known field names, matching the
// CachedDataServer's wildcard subscribe-time expansion.
func (c *RecordCache) MatchingKeys(pattern string) []string {
	if !strings.Contains(pattern, "*") {
		c.mu.Lock()
		_, ok := c.fields[pattern]
		c.mu.Unlock()
		if ok {
			return []string{pattern}
		}
		return nil
	}
	quoted := regexp.QuoteMeta(pattern)
	reStr := "^" + strings.ReplaceAll(quoted, `\*`, ".+") + "$"
	re := regexp.MustCompile(reStr)
	var out []string
	for _, k := range c.Keys() {
		if re.MatchString(k) {
			out = append(out, k)
		}
	}
	return out
}

// GetMetadata returns the metadata object associated with each of the
// given fields, omitting fields with none.
func (c *RecordCache) GetMetadata(fields []string) map[string]any {
	out := make(map[string]any)
	for _, f := range fields {
		c.mu.Lock()
		fc, ok := c.fields[f]
		c.mu.Unlock()
		if !ok {
			continue
		}
		fc.mu.Lock()
		md := fc.metadata
		fc.mu.Unlock()
		if md != nil {
			out[f] = md
		}
	}
	return out
}

// Latest returns the single most recent (timestamp, value) sample for
// field, if any.
func (c *RecordCache) Latest(field string) (record.TimeValue, bool) {
	c.mu.Lock()
	fc, ok := c.fields[field]
	c.mu.Unlock()
	if !ok {
		return record.TimeValue{}, false
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.values) == 0 {
		return record.TimeValue{}, false
	}
	return fc.values[len(fc.values)-1], true
}

// Since returns field's samples with Timestamp > sinceTs, in ascending
// order. sinceTs <= 0 returns every sample (the "seconds=-1 plus
// everything since" semantics are composed by the caller, not here).
func (c *RecordCache) Since(field string, sinceTs float64) []record.TimeValue {
	c.mu.Lock()
	fc, ok := c.fields[field]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	i := sort.Search(len(fc.values), func(i int) bool { return fc.values[i].Timestamp > sinceTs })
	out := make([]record.TimeValue, len(fc.values)-i)
	copy(out, fc.values[i:])
	return out
}

// LastN returns up to the last n samples for field, in ascending order.
func (c *RecordCache) LastN(field string, n int) []record.TimeValue {
	c.mu.Lock()
	fc, ok := c.fields[field]
	c.mu.Unlock()
	if !ok || n <= 0 {
		return nil
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	start := len(fc.values) - n
	if start < 0 {
		start = 0
	}
	out := make([]record.TimeValue, len(fc.values)-start)
	copy(out, fc.values[start:])
	return out
}

// SinceOrLastN unions "everything newer than sinceTs" with "the
// minBackRecords most recent samples regardless of age", matching the
// original's combined back_records/seconds subscribe semantics: a
// subscriber that just connected still gets at least minBackRecords
// samples of context even if they all predate its requested window.
func (c *RecordCache) SinceOrLastN(field string, sinceTs float64, minBackRecords int) []record.TimeValue {
	bySince := c.Since(field, sinceTs)
	if minBackRecords <= len(bySince) {
		return bySince
	}
	return c.LastN(field, minBackRecords)
}

// Cleanup trims every field's history: samples older than oldest (a
// Unix-epoch-seconds cutoff) are dropped, except that at least
// minBackRecords of the most recent samples are always kept regardless
// of age. When maxRecords exceeds minBackRecords, a field holding more
// than maxRecords samples is first cut to its maxRecords most recent
// samples (dropping the oldest first), and the age cutoff then removes
// none of those. A maxRecords at or below minBackRecords caps nothing.
// A zero oldest/maxRecords/minBackRecords disables that respective rule,
// matching the original's cleanup(oldest, max_records, min_back_records).
func (c *RecordCache) Cleanup(oldest float64, maxRecords int, minBackRecords int) {
	c.mu.Lock()
	fieldCaches := make([]*fieldCache, 0, len(c.fields))
	for _, fc := range c.fields {
		fieldCaches = append(fieldCaches, fc)
	}
	c.mu.Unlock()

	for _, fc := range fieldCaches {
		fc.mu.Lock()
		fc.values = cleanupValues(fc.values, oldest, maxRecords, minBackRecords)
		fc.mu.Unlock()
	}
}

func cleanupValues(values []record.TimeValue, oldest float64, maxRecords, minBackRecords int) []record.TimeValue {
	n := len(values)
	if n == 0 {
		return values
	}

	// max_records is applied before the oldest/min_back_records cutoff,
	// matching original_source/server/cached_data_server.py:274-277's
	// order: truncate to the most recent max_records entries first (only
	// when max_records is a meaningfully larger budget than
	// min_back_records), then run the age cutoff over that already-capped
	// slice. Since max_records > minBackRecords here, the capped slice
	// already satisfies the min-back-records guarantee on its own, so the
	// floor used below is max_records, not min_back_records. Otherwise a
	// moderately old but already size-bounded field would still be
	// squeezed down to the smaller min_back_records floor.
	floor := minBackRecords
	if maxRecords > minBackRecords && n > maxRecords {
		values = values[n-maxRecords:]
		n = maxRecords
		floor = maxRecords
	}

	keepFrom := 0
	if oldest > 0 {
		keepFrom = sort.Search(n, func(i int) bool { return values[i].Timestamp >= oldest })
		if floor > 0 && n-keepFrom < floor {
			keepFrom = n - floor
			if keepFrom < 0 {
				keepFrom = 0
			}
		}
	}

	if keepFrom <= 0 {
		return values
	}
	out := make([]record.TimeValue, n-keepFrom)
	copy(out, values[keepFrom:])
	return out
}

// SaveToDisk writes each field's samples to its own JSON file under dir.
// Per spec.md §6, the filename is the literal field name (filesystem-
// escaped), no extension — matching
// original_source/server/cached_data_server.py:306's
// `disk_filename = disk_cache + '/' + field`. A field
// that has ever failed to save is remembered in failedFiles and never
// retried for the lifetime of the process, matching the original's
// permanent "already failed" bookkeeping — a field whose name can't
// round-trip through the filesystem shouldn't be retried every cleanup
// cycle forever.
func (c *RecordCache) SaveToDisk(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cache: save to disk: mkdir %q: %w", dir, err)
	}
	c.diskDir = dir

	for _, field := range c.Keys() {
		c.mu.Lock()
		if c.failedFiles[field] {
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		fc := c.getOrCreate(field)
		fc.mu.Lock()
		values := make([]record.TimeValue, len(fc.values))
		copy(values, fc.values)
		fc.mu.Unlock()

		path := filepath.Join(dir, fieldFileName(field))
		data, err := json.Marshal(values)
		if err != nil {
			c.markFailed(field, err)
			continue
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			c.markFailed(field, err)
			continue
		}
	}
	return nil
}

func (c *RecordCache) markFailed(field string, err error) {
	log.Printf("cache: field %q failed to persist, will not retry: %v", field, err)
	c.mu.Lock()
	c.failedFiles[field] = true
	c.mu.Unlock()
}

// LoadFromDisk restores every file in dir into the cache, treating each
// file's name verbatim as the field name it holds (per spec.md §6 and
// original_source/server/cached_data_server.py:337, which loads every
// entry in the directory this way). Corrupt or unreadable files are
// logged, marked failed (so a subsequent SaveToDisk doesn't try to
// overwrite them with bad data forever), and skipped rather than
// aborting the whole load.
func (c *RecordCache) LoadFromDisk(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cache: load from disk: read dir %q: %w", dir, err)
	}
	c.diskDir = dir

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		field := e.Name()
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			c.markFailed(field, err)
			continue
		}
		var values []record.TimeValue
		if err := json.Unmarshal(data, &values); err != nil {
			c.markFailed(field, err)
			continue
		}
		fc := c.getOrCreate(field)
		fc.mu.Lock()
		fc.values = values
		fc.mu.Unlock()
	}
	return nil
}

func fieldFileName(field string) string {
	replacer := strings.NewReplacer("/", "_", string(os.PathSeparator), "_")
	return replacer.Replace(field)
}
