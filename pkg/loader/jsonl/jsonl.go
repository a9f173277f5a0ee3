package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/coordnet/pkg/common"

	"github.com/klauspost/compress/gzip"
)

// JSONLParser parses newline delimited JSON objects, optionally gzip
// compressed. Numbers are kept as json.Number so large identifiers survive.
type JSONLParser struct {
	Gzip bool
}

// NewJSONLParser creates a parser; gz selects gzip decompression.
func NewJSONLParser(gz bool) *JSONLParser {
	return &JSONLParser{Gzip: gz}
}

// ParseRows implements loader.TableParser.
func (p *JSONLParser) ParseRows(content []byte) ([]common.Row, error) {
	var r io.Reader = bytes.NewReader(content)
	if p.Gzip {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return ReadRows(r)
}

// ReadRows decodes one object per line from r. Blank lines are ignored.
func ReadRows(r io.Reader) ([]common.Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	rows := make([]common.Row, 0)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var row common.Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if row == nil {
			return nil, fmt.Errorf("line %d: expected a JSON object", line)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteRows encodes rows as gzip compressed JSON lines.
func WriteRows(w io.Writer, rows []any) error {
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}
