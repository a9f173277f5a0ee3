package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
)

// CSVParser parses comma separated tables with a header line into rows.
// Every cell is kept as a string; typing happens during schema decoding.
type CSVParser struct {
	Comma rune
}

// NewCSVParser creates a parser for comma separated content.
func NewCSVParser() *CSVParser {
	return &CSVParser{Comma: ','}
}

// ParseRows implements loader.TableParser.
func (p *CSVParser) ParseRows(content []byte) ([]common.Row, error) {
	return ParseCSV(content, p.Comma)
}

// ParseCSV reads content with a header line and returns one row per record.
// Blank records are skipped. Records shorter than the header leave the
// missing columns unset.
func ParseCSV(content []byte, comma rune) ([]common.Row, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return []common.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
	}

	rows := make([]common.Row, 0)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", line, err)
		}
		if isEmpty(record) {
			continue
		}

		row := make(common.Row, len(header))
		for i, field := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = field
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isEmpty(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
