package storage

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"github.com/zakazai/tracklog/internal/types"
)

// xlsxMetaSheet is a hidden sheet holding the number of data rows. Rows
// whose cells are all empty are not returned by GetRows, so the count
// restores them.
const xlsxMetaSheet = "tracklog"

type xlsxCodec struct{}

// NewXLSXStorage stores each dataset as the first sheet of <dir>/<name>.xlsx.
// Numbers are written as number cells, everything else as text cells, and
// each cell loads back with the type of the cell it was written to.
func NewXLSXStorage(dir string, logger *types.Logger) *FileStorage {
	return newFileStorage(dir, xlsxCodec{}, logger)
}

func (xlsxCodec) ext() string { return "xlsx" }

func xlsxCell(v types.Value) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string, int64, float64:
		return val
	default:
		return types.FormatValue(val)
	}
}

func (xlsxCodec) encode(w io.Writer, table *types.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if len(table.Columns) > 0 {
		header := make([]interface{}, len(table.Columns))
		for i, col := range table.Columns {
			header[i] = col
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
	}

	for i, row := range table.Rows {
		cells := make([]interface{}, len(table.Columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = xlsxCell(row[j])
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(xlsxMetaSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(xlsxMetaSheet, "A1", &[]interface{}{"rows", len(table.Rows)}); err != nil {
		return err
	}
	if err := f.SetSheetVisible(xlsxMetaSheet, false); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func (xlsxCodec) decode(path, name string) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := ""
	for _, s := range f.GetSheetList() {
		if s != xlsxMetaSheet {
			sheet = s
			break
		}
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no data sheet")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return types.NewTable(name, nil), nil
	}
	table := types.NewTable(name, rows[0])
	for i, cells := range rows[1:] {
		// trailing empty cells are not returned, Normalize pads them back
		row := make(types.Row, len(cells))
		for j, text := range cells {
			if row[j], err = xlsxValue(f, sheet, j+1, i+2, text); err != nil {
				return nil, err
			}
		}
		table.Rows = append(table.Rows, row)
	}

	count, err := xlsxRowCount(f)
	if err != nil {
		return nil, err
	}
	for len(table.Rows) < count {
		table.Rows = append(table.Rows, types.Row{})
	}
	return table, nil
}

// xlsxValue types a raw cell value by the type of its cell
func xlsxValue(f *excelize.File, sheet string, col, row int, text string) (types.Value, error) {
	if text == "" {
		return nil, nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return v, nil
		}
		return text, nil
	case excelize.CellTypeBool:
		return text == "1" || text == "TRUE" || text == "true", nil
	default:
		return text, nil
	}
}

// xlsxRowCount reads the data row count from the hidden sheet; a workbook
// without one counts as having no row beyond those GetRows returns
func xlsxRowCount(f *excelize.File) (int, error) {
	index, err := f.GetSheetIndex(xlsxMetaSheet)
	if err != nil || index < 0 {
		return 0, err
	}
	text, err := f.GetCellValue(xlsxMetaSheet, "B1", excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid row count %q in sheet %s", text, xlsxMetaSheet)
	}
	return count, nil
}
