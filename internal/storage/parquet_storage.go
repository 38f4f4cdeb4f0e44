package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/zakazai/tracklog/internal/types"
)

const (
	parquetKindHeader = "header"
	parquetKindRow    = "row"
)

// ParquetRow is one row of a dataset file. Datasets have no fixed schema,
// so the first row carries the header as a JSON array of column names and
// every following row carries its cells as a JSON array of parquetCell,
// null for an empty cell.
type ParquetRow struct {
	Kind     string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	DataJSON string `parquet:"name=data_json, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// parquetCell is a cell's type tag and text
type parquetCell struct {
	Type string `json:"t"`
	Text string `json:"v"`
}

// Cell type tags
const (
	cellString = "s"
	cellInt    = "i"
	cellFloat  = "f"
	cellBool   = "b"
	cellTime   = "d"
)

func toParquetCell(v types.Value) *parquetCell {
	switch val := types.NormalizeValue(v).(type) {
	case nil:
		return nil
	case int64:
		return &parquetCell{Type: cellInt, Text: strconv.FormatInt(val, 10)}
	case float64:
		return &parquetCell{Type: cellFloat, Text: strconv.FormatFloat(val, 'g', -1, 64)}
	case bool:
		return &parquetCell{Type: cellBool, Text: strconv.FormatBool(val)}
	case time.Time:
		return &parquetCell{Type: cellTime, Text: val.Format(time.RFC3339Nano)}
	default:
		return &parquetCell{Type: cellString, Text: types.FormatValue(val)}
	}
}

func (c *parquetCell) value() (types.Value, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Type {
	case cellString:
		return c.Text, nil
	case cellInt:
		return strconv.ParseInt(c.Text, 10, 64)
	case cellFloat:
		return strconv.ParseFloat(c.Text, 64)
	case cellBool:
		return strconv.ParseBool(c.Text)
	case cellTime:
		return time.Parse(time.RFC3339Nano, c.Text)
	}
	return nil, fmt.Errorf("unknown cell type %q", c.Type)
}

type parquetCodec struct{}

// NewParquetStorage stores each dataset as <dir>/<name>.parquet
func NewParquetStorage(dir string, logger *types.Logger) *FileStorage {
	return newFileStorage(dir, parquetCodec{}, logger)
}

func (parquetCodec) ext() string { return "parquet" }

func (parquetCodec) encode(w io.Writer, table *types.Table) error {
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(ParquetRow), 1)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	header, err := json.Marshal(append([]string{}, table.Columns...))
	if err != nil {
		return err
	}
	if err := pw.Write(&ParquetRow{Kind: parquetKindHeader, DataJSON: string(header)}); err != nil {
		return err
	}

	for _, row := range table.Rows {
		cells := make([]*parquetCell, len(table.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = toParquetCell(row[i])
			}
		}
		data, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		if err := pw.Write(&ParquetRow{Kind: parquetKindRow, DataJSON: string(data)}); err != nil {
			return err
		}
	}

	// Flush and close writer
	return pw.WriteStop()
}

func (parquetCodec) decode(path, name string) (table *types.Table, err error) {
	// the reader panics on some malformed footers
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("malformed parquet file: %v", r)
		}
	}()

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	if numRows == 0 {
		return nil, fmt.Errorf("parquet file has no header row")
	}
	parquetRows := make([]ParquetRow, numRows)
	if err := pr.Read(&parquetRows); err != nil {
		return nil, fmt.Errorf("failed to read Parquet rows: %w", err)
	}

	if parquetRows[0].Kind != parquetKindHeader {
		return nil, fmt.Errorf("first parquet row is %q, want %q", parquetRows[0].Kind, parquetKindHeader)
	}
	var columns []string
	if err := json.Unmarshal([]byte(parquetRows[0].DataJSON), &columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}

	table = types.NewTable(name, columns)
	for i, prow := range parquetRows[1:] {
		if prow.Kind != parquetKindRow {
			return nil, fmt.Errorf("row %d: unexpected kind %q", i+1, prow.Kind)
		}
		var cells []*parquetCell
		if err := json.Unmarshal([]byte(prow.DataJSON), &cells); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row %d: %w", i+1, err)
		}
		row := make(types.Row, len(cells))
		for j, c := range cells {
			if row[j], err = c.value(); err != nil {
				return nil, fmt.Errorf("row %d, cell %d: %w", i+1, j, err)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
