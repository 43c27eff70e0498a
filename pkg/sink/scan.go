package sink

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/core"
)

const maxLineBytes = 1 << 20

// legacy tool error prefixes, written into the Company Name column
var legacyErrorPrefixes = []string{"API response error", "API request error", "Empty row from input file"}

// Entry is one parsed sink row.
type Entry struct {
	Item   core.WorkItem
	Status core.Status
	Fields []string
}

// Scan calls fn for every complete row of the sink at path, in file order.
// Header lines, blank lines and torn or malformed lines are skipped. Files
// written by the legacy tool (input in the first column, no hint or status
// columns) are understood too. A missing file yields no rows.
func Scan(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer f.Close()

	return scan(f, fn)
}

func scan(r io.Reader, fn func(Entry) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var layout *legacyLayout
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, ok := parseLine(line)
		if !ok {
			continue
		}

		if first {
			first = false
			if isHeader(fields) {
				layout = detectLegacy(fields)
				continue
			}
		}

		entry, ok := toEntry(fields, layout)
		if !ok {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("sink: scan: %w", err)
	}
	return nil
}

func parseLine(line string) ([]string, bool) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, false
	}
	return fields, true
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.TrimPrefix(fields[0], "\ufeff") == Header[colInput]
}

// legacyLayout describes a file written before hint and status columns existed.
type legacyLayout struct {
	companyCol int
}

func detectLegacy(header []string) *legacyLayout {
	if len(header) > colStatus && header[colHint] == Header[colHint] && header[colStatus] == Header[colStatus] {
		return nil
	}
	l := &legacyLayout{companyCol: -1}
	for i, name := range header {
		if name == "Company Name" {
			l.companyCol = i
		}
	}
	return l
}

func toEntry(fields []string, layout *legacyLayout) (Entry, bool) {
	if layout != nil {
		if fields[colInput] == "" {
			return Entry{}, false
		}
		status := core.StatusSuccess
		if layout.companyCol >= 0 && layout.companyCol < len(fields) && isLegacyError(fields[layout.companyCol]) {
			status = core.StatusFailed
		}
		return Entry{Item: core.WorkItem{Input: fields[colInput]}, Status: status, Fields: fields}, true
	}

	if len(fields) != len(Header) || fields[colInput] == "" {
		return Entry{}, false
	}
	status := core.Status(fields[colStatus])
	if status != core.StatusSuccess && status != core.StatusFailed {
		return Entry{}, false
	}
	// A row torn inside the last column still has every field.
	if _, err := time.Parse(TimeLayout, fields[len(fields)-1]); err != nil {
		return Entry{}, false
	}
	return Entry{
		Item:   core.WorkItem{Input: fields[colInput], Hint: fields[colHint]},
		Status: status,
		Fields: fields,
	}, true
}

func isLegacyError(company string) bool {
	for _, p := range legacyErrorPrefixes {
		if strings.HasPrefix(company, p) {
			return true
		}
	}
	return false
}

// Existing is the resume state recovered from a sink.
type Existing struct {
	// Rows is the number of complete rows found.
	Rows   int
	status map[core.Identity]core.Status
}

// LoadExisting scans the sink at path and records, per identity, whether any
// of its rows is a success. A missing file yields an empty state.
func LoadExisting(path string) (*Existing, error) {
	e := &Existing{status: make(map[core.Identity]core.Status)}
	err := Scan(path, func(entry Entry) error {
		e.Rows++
		id := entry.Item.ID()
		if e.status[id] != core.StatusSuccess {
			e.status[id] = entry.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Len returns the number of distinct identities.
func (e *Existing) Len() int {
	return len(e.status)
}

// Status returns the best status recorded for id.
func (e *Existing) Status(id core.Identity) (core.Status, bool) {
	s, ok := e.status[id]
	return s, ok
}

// Processed returns the identities that count as done. With retryFailed,
// identities whose rows are all failures are left out so they run again.
func (e *Existing) Processed(retryFailed bool) core.Set {
	set := make(core.Set, len(e.status))
	for id, s := range e.status {
		if retryFailed && s != core.StatusSuccess {
			continue
		}
		set.Add(id)
	}
	return set
}
