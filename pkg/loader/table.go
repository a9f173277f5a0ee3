package loader

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/loader/csv"
	"github.com/OFFIS-RIT/coordnet/pkg/loader/jsonl"
)

// ParserFor returns the parser matching a table format.
func ParserFor(format TableFormat) (TableParser, error) {
	switch format {
	case TableFormatJSONL:
		return jsonl.NewJSONLParser(false), nil
	case TableFormatJSONLGz:
		return jsonl.NewJSONLParser(true), nil
	case TableFormatCSV:
		return csv.NewCSVParser(), nil
	}
	return nil, fmt.Errorf("no parser for table format %q", format)
}

// ReadRows loads the table through its loader and parses it into rows.
func ReadRows(ctx context.Context, file TableFile) ([]common.Row, error) {
	parser, err := ParserFor(file.Format)
	if err != nil {
		return nil, err
	}
	content, err := file.GetBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file.FilePath, err)
	}
	rows, err := parser.ParseRows(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file.FilePath, err)
	}
	return rows, nil
}
