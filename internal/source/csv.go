package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// ReadCSV reads a headed CSV extract. Empty cells become nil.
func ReadCSV(r io.Reader) (ledger.RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return ledger.RawTable{}, nil
	}
	if err != nil {
		return ledger.RawTable{}, fmt.Errorf("read header: %w", err)
	}
	// Spreadsheet exports often start with a byte order mark.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := ledger.RawTable{Columns: header}
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ledger.RawTable{}, fmt.Errorf("line %d: %w", lineNum, err)
		}
		row := make([]any, len(record))
		for i, v := range record {
			if strings.TrimSpace(v) == "" {
				continue
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Fetcher downloads an object by gs:// URI.
type Fetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// CSVLoader reads <kind>.csv extracts from a local directory or a gs://
// prefix. The extracts are expected to be windowed already. A missing
// corrections file loads as an empty extract.
type CSVLoader struct {
	dir     string
	fetcher Fetcher
}

// NewCSVLoader creates a loader rooted at dir. fetcher is required only for
// gs:// roots.
func NewCSVLoader(dir string, fetcher Fetcher) *CSVLoader {
	return &CSVLoader{dir: strings.TrimSuffix(dir, "/"), fetcher: fetcher}
}

// Load implements Loader.
func (l *CSVLoader) Load(ctx context.Context, kind ledger.Kind, _ Window) (ledger.RawTable, error) {
	name := kind.String() + ".csv"

	var data []byte
	var err error
	if strings.HasPrefix(l.dir, "gs://") {
		if l.fetcher == nil {
			return ledger.RawTable{}, fmt.Errorf("CSVLoader: no storage client for %s", l.dir)
		}
		data, err = l.fetcher.FetchFromGCS(ctx, l.dir+"/"+name)
		if errors.Is(err, storage.ErrObjectNotExist) && kind == ledger.KindCorrections {
			return ledger.RawTable{}, nil
		}
	} else {
		data, err = os.ReadFile(filepath.Join(l.dir, name))
		if errors.Is(err, fs.ErrNotExist) && kind == ledger.KindCorrections {
			return ledger.RawTable{}, nil
		}
	}
	if err != nil {
		return ledger.RawTable{}, fmt.Errorf("CSVLoader: %s: %w", name, err)
	}

	t, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return ledger.RawTable{}, fmt.Errorf("CSVLoader: %s: %w", name, err)
	}
	return t, nil
}

var _ Loader = (*CSVLoader)(nil)
