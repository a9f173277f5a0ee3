package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
)

type TableFormat string

const (
	TableFormatJSONL   TableFormat = "jsonl"
	TableFormatJSONLGz TableFormat = "jsonl.gz"
	TableFormatCSV     TableFormat = "csv"
)

// FormatFromPath derives the table format from a file name.
func FormatFromPath(path string) (TableFormat, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".jsonl.gz"), strings.HasSuffix(lower, ".json.gz"):
		return TableFormatJSONLGz, nil
	case strings.HasSuffix(lower, ".jsonl"), strings.HasSuffix(lower, ".json"):
		return TableFormatJSONL, nil
	case strings.HasSuffix(lower, ".csv"):
		return TableFormatCSV, nil
	}
	return "", fmt.Errorf("unsupported table format: %s", path)
}

// TableFile represents one input table of a dataset. It contains the path
// relative to the loader's root, the row format and the loader used to fetch
// the raw bytes.
//
// The parsed rows are retrieved via the associated TableParser.
type TableFile struct {
	Label    common.PopulationLabel
	FilePath string
	Format   TableFormat
	Loader   TableFileLoader
}

// NewTableFileParams defines the input parameters for creating a new TableFile.
type NewTableFileParams struct {
	Label    common.PopulationLabel
	FilePath string
	Loader   TableFileLoader
}

// NewTableFile creates a TableFile and derives its format from the path.
func NewTableFile(params NewTableFileParams) (TableFile, error) {
	format, err := FormatFromPath(params.FilePath)
	if err != nil {
		return TableFile{}, err
	}
	return TableFile{
		Label:    params.Label,
		FilePath: params.FilePath,
		Format:   format,
		Loader:   params.Loader,
	}, nil
}

// GetBytes retrieves the raw content of the table using its Loader.
func (f *TableFile) GetBytes(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("no loader configured for %s", f.FilePath)
	}
	return f.Loader.GetFileBytes(ctx, *f)
}

// TableFileLoader defines the interface for loading the raw contents of a
// TableFile. Implementations may load files from disk, cloud storage, or
// other sources.
type TableFileLoader interface {
	GetFileBytes(ctx context.Context, file TableFile) ([]byte, error)
}

// TableParser turns the raw bytes of a table into rows.
type TableParser interface {
	ParseRows(content []byte) ([]common.Row, error)
}

// CacheKey returns the key loaders use to memoize a file's content.
func CacheKey(file TableFile) string {
	return string(file.Format) + ":" + file.FilePath
}

// Tables holds the two input tables of a run.
type Tables struct {
	Control TableFile
	Suspect TableFile
}
