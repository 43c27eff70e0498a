package sink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// TimeLayout is the layout of the Date & Time column.
const TimeLayout = "2006-01-02 15:04:05"

// Column positions used by resume.
const (
	colInput  = 0
	colHint   = 1
	colStatus = 2
)

// Header lists the columns of a sink file.
var Header = []string{
	"Original Input",
	"Type Hint",
	"Status",
	"Company Name",
	"Alias 1",
	"Alias 2",
	"Alias 3",
	"All Aliases",
	"Confidence Level",
	"Confidence",
	"Ticker",
	"Exchange",
	"Majority Owner",
	"FIGI",
	"Related Entity 1 Name",
	"Related Entity 2 Name",
	"Related Entity 3 Name",
	"All Related Entities",
	"Alternative Company Matches",
	"Websites",
	"Error",
	"Date & Time",
}

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("mapper: sink is closed")

// Sink is an append-only CSV file of results. It is safe for concurrent use.
type Sink struct {
	path string
	sync bool

	mu     sync.Mutex
	file   *os.File
	err    error
	closed bool
}

// Option configures a Sink.
type Option interface {
	apply(*Sink)
}

type optionFunc func(*Sink)

func (f optionFunc) apply(s *Sink) { f(s) }

// WithSync controls whether every append is followed by fsync. Default: true.
func WithSync(enabled bool) Option {
	return optionFunc(func(s *Sink) {
		s.sync = enabled
	})
}

// Open opens the sink at path for appending, creating it and its directory
// if needed. A header is written to empty files. A torn trailing line left by
// a crash is terminated so the next row starts on its own line.
func Open(path string, opts ...Option) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, core.ErrMissingSink
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: ensure dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}

	s := &Sink{path: path, sync: true, file: f}
	for _, opt := range opts {
		opt.apply(s)
	}

	if err := s.prepare(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) prepare() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("sink: stat %s: %w", s.path, err)
	}

	if info.Size() == 0 {
		line, err := encodeRow(Header)
		if err != nil {
			return err
		}
		return s.write(line)
	}

	last, err := lastByte(s.path, info.Size())
	if err != nil {
		return err
	}
	if last != '\n' {
		return s.write([]byte("\n"))
	}
	return nil
}

func lastByte(path string, size int64) (byte, error) {
	r, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer r.Close()

	buf := make([]byte, 1)
	if _, err := r.ReadAt(buf, size-1); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("sink: read %s: %w", path, err)
	}
	return buf[0], nil
}

// Path returns the file path of the sink.
func (s *Sink) Path() string {
	return s.path
}

// Append writes one record as a single line. A failed write poisons the sink:
// every later call returns the same error.
func (s *Sink) Append(rec core.SinkRecord) error {
	line, err := encodeRow(Row(rec))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	if err := s.write(line); err != nil {
		s.err = err
		return err
	}
	return nil
}

func (s *Sink) write(line []byte) error {
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.path, err)
	}
	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sink: sync %s: %w", s.path, err)
		}
	}
	return nil
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func encodeRow(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, fmt.Errorf("sink: encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("sink: encode row: %w", err)
	}
	return buf.Bytes(), nil
}

// Row converts a record into the sink columns. Every field is folded to a
// single line.
func Row(rec core.SinkRecord) []string {
	o := rec.Outcome
	row := make([]string, len(Header))
	row[colInput] = oneLine(o.Item.Input)
	row[colHint] = oneLine(o.Item.Hint)
	row[colStatus] = string(o.Status())

	if r := o.Record; r != nil {
		row[3] = oneLine(r.CompanyName)
		row[4] = oneLine(nth(r.Aliases, 0))
		row[5] = oneLine(nth(r.Aliases, 1))
		row[6] = oneLine(nth(r.Aliases, 2))
		row[7] = oneLine(strings.Join(r.Aliases, "; "))
		row[8] = oneLine(r.ConfidenceLevel)
		row[9] = strconv.FormatFloat(r.Confidence, 'f', -1, 64)
		row[10] = oneLine(r.Ticker)
		row[11] = oneLine(r.Exchange)
		row[12] = oneLine(r.MajorityOwner)
		row[13] = oneLine(r.FIGI)
		row[14] = oneLine(nth(r.RelatedEntities, 0))
		row[15] = oneLine(nth(r.RelatedEntities, 1))
		row[16] = oneLine(nth(r.RelatedEntities, 2))
		row[17] = oneLine(strings.Join(r.RelatedEntities, "; "))
		row[18] = oneLine(strings.Join(r.AlternativeMatches, ": "))
		row[19] = oneLine(strings.Join(r.Websites, "; "))
	}
	if o.Err != nil {
		row[20] = security.SanitizeErrorMessage(o.Err.Error())
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	row[21] = ts.Format(TimeLayout)
	return row
}

func nth(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}
