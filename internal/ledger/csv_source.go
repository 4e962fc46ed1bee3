package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource reads a ledger from a CSV file with a header row.
//
// Required columns (by header name, case-insensitive): an entity
// identifier, an event type, and an event date. Column aliases cover
// both the engine's native export and upstream incident dumps. Extra
// columns are ignored.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a CSV-backed ledger source.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

var (
	entityAliases = []string{"entity_id", "item_id", "case_id"}
	typeAliases   = []string{"event_type", "type"}
	dateAliases   = []string{"event_date", "timestamp", "date"}
)

// Load reads and validates every row. An unreadable file or a header
// without the required columns is fatal; individual malformed rows are
// skipped and counted.
func (s *CSVSource) Load(ctx context.Context) (*LoadResult, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // row width is validated per row
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	entityCol, err := findColumn(header, entityAliases)
	if err != nil {
		return nil, err
	}
	typeCol, err := findColumn(header, typeAliases)
	if err != nil {
		return nil, err
	}
	dateCol, err := findColumn(header, dateAliases)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Skipped: make(map[SkipReason]int)}
	width := maxInt(entityCol, maxInt(typeCol, dateCol)) + 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the csv reader itself rejects (bare quote etc.)
			// is a row fault, not a load fault.
			result.RowsRead++
			result.skip(SkipShortRow)
			continue
		}
		if len(row) < width {
			result.RowsRead++
			result.skip(SkipShortRow)
			continue
		}
		result.validateRow(row[entityCol], row[typeCol], row[dateCol])
	}

	return result, nil
}

func findColumn(header []string, aliases []string) (int, error) {
	for _, alias := range aliases {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), alias) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: one of %s", ErrMissingColumn, strings.Join(aliases, ", "))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
