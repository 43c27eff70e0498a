package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	mapper "github.com/jdziat/bulk-mapper"
)

// decoder returns a reader that converts r to UTF-8. A byte order mark
// selects UTF-8 or UTF-16 whatever the named encoding is.
func decoder(r io.Reader, name string) (io.Reader, error) {
	var enc encoding.Encoding = unicode.UTF8
	if name != "" {
		e, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		enc = e
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// readItems parses one input per line. Unless plain is set a line may carry a
// hint after a comma; quote inputs that contain commas.
func readItems(r io.Reader, encodingName string, plain bool) ([]mapper.WorkItem, error) {
	dr, err := decoder(r, encodingName)
	if err != nil {
		return nil, err
	}

	if plain {
		data, err := io.ReadAll(dr)
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		items := make([]mapper.WorkItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, mapper.WorkItem{Input: line})
		}
		return items, nil
	}

	cr := csv.NewReader(dr)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var items []mapper.WorkItem
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		item := mapper.WorkItem{Input: rec[0]}
		if len(rec) > 1 {
			item.Hint = rec[1]
		}
		items = append(items, item)
	}
	return items, nil
}

func readItemsFile(path, encodingName string, plain bool) ([]mapper.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readItems(f, encodingName, plain)
}

// defaultOutput is <input without extension>-<YYYY-MM-DD>.csv next to the input.
func defaultOutput(inputPath string, now time.Time) string {
	dir, name := filepath.Split(inputPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.csv", base, now.Format("2006-01-02")))
}
