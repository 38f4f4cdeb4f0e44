package storage

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/zakazai/tracklog/internal/types"
)

type csvCodec struct{}

// NewCSVStorage stores each dataset as <dir>/<name>.csv with a header line.
// CSV has no cell types, so cells load as strings and an empty cell as nil.
func NewCSVStorage(dir string, logger *types.Logger) *FileStorage {
	return newFileStorage(dir, csvCodec{}, logger)
}

func (csvCodec) ext() string { return "csv" }

func (csvCodec) encode(w io.Writer, table *types.Table) error {
	cw := csv.NewWriter(w)
	if len(table.Columns) > 0 {
		if err := writeCSVRecord(cw, w, table.Columns); err != nil {
			return err
		}
	}
	for _, row := range table.Rows {
		if err := writeCSVRecord(cw, w, rowText(row, len(table.Columns))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeCSVRecord writes a record whose only field is empty as "", since
// the writer would emit a blank line and the reader skips blank lines
func writeCSVRecord(cw *csv.Writer, w io.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

func (csvCodec) decode(path, name string) (*types.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// rows must match the header width
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return types.NewTable(name, nil), nil
	}
	table := types.NewTable(name, records[0])
	for _, rec := range records[1:] {
		table.Rows = append(table.Rows, textRow(rec))
	}
	return table, nil
}
