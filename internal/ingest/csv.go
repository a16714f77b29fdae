package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Source yields records in order and returns io.EOF once exhausted.
type Source interface {
	Next() (Record, error)
}

// CSVSource reads records from CSV with a header row naming at least the required
// columns, in any order. Extra columns are ignored.
type CSVSource struct {
	reader  *csv.Reader
	columns map[string]int
	row     int
}

func NewCSVSource(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv source has no header row")
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv source must contain columns [%s]; missing [%s]",
			strings.Join(RequiredColumns, ", "), strings.Join(missing, ", "))
	}

	return &CSVSource{reader: reader, columns: columns}, nil
}

// Next returns the next record. Short rows leave the missing fields empty, which
// Record.Order reports as missing.
func (s *CSVSource) Next() (Record, error) {
	fields, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, &RowError{Row: s.row, Err: err}
	}
	s.row++

	field := func(name string) string {
		i := s.columns[name]
		if i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	return Record{
		Side:     field("side"),
		Symbol:   field("symbol"),
		Price:    field("price"),
		Quantity: field("quantity"),
	}, nil
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []Record
	next    int
}

func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() (Record, error) {
	if s.next >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.next]
	s.next++
	return r, nil
}
