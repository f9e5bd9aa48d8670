package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Table names one of the two ledger tables.
type Table int

const (
	TableSources Table = iota
	TableArtifacts
)

// Tables lists every table in display order.
func Tables() []Table {
	return []Table{TableSources, TableArtifacts}
}

// String returns the SQL table name.
func (t Table) String() string {
	switch t {
	case TableSources:
		return "source_files"
	case TableArtifacts:
		return "processed_files"
	default:
		return "table(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseTable accepts the SQL name or a short alias.
func ParseTable(value string) (Table, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "source_files", "sources", "source", "sourcefile":
		return TableSources, true
	case "processed_files", "artifacts", "artifact", "processedfiles":
		return TableArtifacts, true
	default:
		return 0, false
	}
}

// Row is a table-agnostic view of one ledger row, keyed by column name.
type Row struct {
	Columns []string
	Values  []string
}

var (
	sourceColumns   = []string{"id", "source_file_name", "local_file_path", "file_size", "status", "created_at", "updated_at"}
	artifactColumns = []string{"id", "local_file_path", "source_file_name", "status", "created_at", "updated_at"}
)

// Columns returns the column names for t.
func (t Table) Columns() []string {
	switch t {
	case TableSources:
		return append([]string(nil), sourceColumns...)
	case TableArtifacts:
		return append([]string(nil), artifactColumns...)
	default:
		return nil
	}
}

// Query performs a full scan of t through the typed accessors.
func (s *Store) Query(ctx context.Context, t Table) ([]Row, error) {
	switch t {
	case TableSources:
		records, err := s.Sources(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, Row{Columns: sourceColumns, Values: []string{
				strconv.FormatInt(r.ID, 10),
				r.Name,
				r.LocalPath,
				strconv.FormatInt(r.Size, 10),
				string(r.Status),
				formatTime(r.CreatedAt),
				formatTime(r.UpdatedAt),
			}})
		}
		return rows, nil
	case TableArtifacts:
		records, err := s.Artifacts(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, Row{Columns: artifactColumns, Values: []string{
				strconv.FormatInt(r.ID, 10),
				r.LocalPath,
				r.SourceName,
				string(r.Status),
				formatTime(r.CreatedAt),
				formatTime(r.UpdatedAt),
			}})
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("query: unknown table %s", t)
	}
}
