package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/bulk-mapper/pkg/core"
)

// newTestSink opens a sink in a fresh temp dir without fsync.
func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out", "results.csv"), WithSync(false))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func successRecord(input, hint string) core.SinkRecord {
	return core.SinkRecord{
		Outcome: core.Success(core.WorkItem{Input: input, Hint: hint}, &core.Record{
			CompanyName:     "Company " + input,
			Aliases:         []string{"One", "Two", "Three", "Four"},
			Confidence:      0.5,
			RelatedEntities: []string{"Parent"},
			Websites:        []string{"a.com", "b.com"},
		}),
		Timestamp: time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC),
	}
}

func failureRecord(input, hint string, kind core.ErrorKind) core.SinkRecord {
	return core.SinkRecord{
		Outcome:   core.Failure(core.WorkItem{Input: input, Hint: hint}, core.NewQueryError(kind, "boom")),
		Timestamp: time.Now(),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func scanAll(t *testing.T, path string) []Entry {
	t.Helper()
	var entries []Entry
	require.NoError(t, Scan(path, func(e Entry) error {
		entries = append(entries, e)
		return nil
	}))
	return entries
}

func TestOpen_WritesHeaderOnce(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Close())

	again, err := Open(s.Path(), WithSync(false))
	require.NoError(t, err)
	require.NoError(t, again.Close())

	lines := readLines(t, s.Path())
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.ErrorIs(t, err, core.ErrMissingSink)
}

func TestAppend_Row(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Append(successRecord("abc.com", "tech")))

	entries := scanAll(t, s.Path())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, core.WorkItem{Input: "abc.com", Hint: "tech"}, e.Item)
	assert.Equal(t, core.StatusSuccess, e.Status)
	assert.Equal(t, "Company abc.com", e.Fields[3])
	assert.Equal(t, "One", e.Fields[4])
	assert.Equal(t, "Three", e.Fields[6])
	assert.Equal(t, "One; Two; Three; Four", e.Fields[7])
	assert.Equal(t, "0.5", e.Fields[9])
	assert.Equal(t, "Parent", e.Fields[14])
	assert.Equal(t, "", e.Fields[15])
	assert.Equal(t, "a.com; b.com", e.Fields[19])
	assert.Equal(t, "", e.Fields[20])
	assert.Equal(t, "2026-10-19 14:30:00", e.Fields[21])
}

func TestAppend_FailureRow(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Append(failureRecord("bad input", "", core.KindRemoteValidation)))

	entries := scanAll(t, s.Path())
	require.Len(t, entries, 1)
	assert.Equal(t, core.StatusFailed, entries[0].Status)
	assert.Equal(t, "", entries[0].Fields[3])
	assert.Equal(t, "remote_validation: boom", entries[0].Fields[20])
}

func TestAppend_FoldsNewlinesAndQuotes(t *testing.T) {
	s := newTestSink(t)
	rec := successRecord("ACME, \"Inc\"\nSecond line", "")
	rec.Outcome.Record.CompanyName = "Acme\r\nCorp"
	require.NoError(t, s.Append(rec))

	lines := readLines(t, s.Path())
	require.Len(t, lines, 2, "each record must be exactly one physical line")

	entries := scanAll(t, s.Path())
	require.Len(t, entries, 1)
	assert.Equal(t, "ACME, \"Inc\" Second line", entries[0].Item.Input)
	assert.Equal(t, "Acme Corp", entries[0].Fields[3])
}

func TestAppend_Concurrent(t *testing.T) {
	s := newTestSink(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, s.Append(successRecord(fmt.Sprintf("w%d-%d.com", w, i), "")))
			}
		}(w)
	}
	wg.Wait()

	entries := scanAll(t, s.Path())
	assert.Len(t, entries, 400)

	seen := make(map[string]bool)
	for _, e := range entries {
		assert.Len(t, e.Fields, len(Header))
		seen[e.Item.Input] = true
	}
	assert.Len(t, seen, 400)
}

func TestAppend_AfterClose(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(successRecord("a.com", "")), ErrClosed)
}

func TestAppend_WriteErrorIsSticky(t *testing.T) {
	s := newTestSink(t)
	// Break the descriptor underneath the sink.
	require.NoError(t, s.file.Close())

	err := s.Append(successRecord("a.com", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink: write")

	assert.Equal(t, err, s.Append(successRecord("b.com", "")))
}

func TestOpen_SealsTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Open(path, WithSync(false))
	require.NoError(t, err)
	require.NoError(t, s.Append(successRecord("abc.com", "")))
	require.NoError(t, s.Close())

	// Simulate a crash halfway through the next row.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`yahoo.com,,success,"Yah`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err = Open(path, WithSync(false))
	require.NoError(t, err)
	require.NoError(t, s.Append(successRecord("etsy.com", "")))
	require.NoError(t, s.Close())

	var inputs []string
	for _, e := range scanAll(t, path) {
		inputs = append(inputs, e.Item.Input)
	}
	assert.Equal(t, []string{"abc.com", "etsy.com"}, inputs)
}

func TestScan_MissingFile(t *testing.T) {
	entries := scanAll(t, filepath.Join(t.TempDir(), "nope.csv"))
	assert.Empty(t, entries)
}

func TestScan_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Open(path, WithSync(false))
	require.NoError(t, err)
	require.NoError(t, s.Append(successRecord("abc.com", "")))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n,,success\nonly,three,columns\nx.com,,maybe" + strings.Repeat(",", len(Header)-3) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries := scanAll(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc.com", entries[0].Item.Input)
}

func TestScan_SkipsRowTornInTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Open(path, WithSync(false))
	require.NoError(t, err)
	require.NoError(t, s.Append(successRecord("abc.com", "")))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("yahoo.com,,success" + strings.Repeat(",", len(Header)-3) + "2026-10-1")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries := scanAll(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc.com", entries[0].Item.Input)
}

func TestScan_LegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.csv")
	legacy := strings.Join([]string{
		"Original Input,Company Name,Alias 1,Date & Time",
		"abc.com,ABC Corp,ABC,2019-01-01 10:00:00",
		"bad.com,API response error: 500 Internal Server Error for inputs ['bad.com'],,2019-01-01 10:00:00",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	entries := scanAll(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, core.WorkItem{Input: "abc.com"}, entries[0].Item)
	assert.Equal(t, core.StatusSuccess, entries[0].Status)
	assert.Equal(t, core.StatusFailed, entries[1].Status)
}

func TestLoadExisting(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Append(successRecord("abc.com", "")))
	require.NoError(t, s.Append(failureRecord("yahoo.com", "", core.KindTransport)))
	require.NoError(t, s.Append(failureRecord("etsy.com", "", core.KindTimeout)))
	require.NoError(t, s.Append(successRecord("etsy.com", "")))
	require.NoError(t, s.Append(successRecord("apple", "fruit")))

	existing, err := LoadExisting(s.Path())
	require.NoError(t, err)

	assert.Equal(t, 5, existing.Rows)
	assert.Equal(t, 4, existing.Len())

	st, ok := existing.Status(core.Identity{Input: "etsy.com"})
	require.True(t, ok)
	assert.Equal(t, core.StatusSuccess, st, "a success anywhere wins")

	all := existing.Processed(false)
	assert.True(t, all.Has(core.Identity{Input: "yahoo.com"}))
	assert.True(t, all.Has(core.Identity{Input: "apple", Hint: "fruit"}))
	assert.False(t, all.Has(core.Identity{Input: "apple"}))

	onlyOK := existing.Processed(true)
	assert.False(t, onlyOK.Has(core.Identity{Input: "yahoo.com"}))
	assert.True(t, onlyOK.Has(core.Identity{Input: "abc.com"}))
	assert.Len(t, onlyOK, 3)
}

func TestLoadExisting_MissingFile(t *testing.T) {
	existing, err := LoadExisting(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, existing.Rows)
	assert.Empty(t, existing.Processed(false))
}
