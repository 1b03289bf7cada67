package excel

import (
	"fmt"
	"strconv"

	"gofactor/domain/experiment"

	"github.com/xuri/excelize/v2"
)

// WriteTable writes rows to a new xlsx file, the first row being the
// header. Cells that parse as numbers are stored as numbers.
func WriteTable(path, sheet string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = DefaultLoaderConfig().Sheet
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = cellValue(v, i == 0)
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteRanking writes a ranking as rank, factor, score rows on a sheet
// named after the strategy.
func WriteRanking(path, strategy string, ranking experiment.Ranking) error {
	rows := [][]string{{"rank", "factor", "score"}}
	for i, fs := range ranking {
		rows = append(rows, []string{strconv.Itoa(i + 1), fs.Factor, strconv.FormatFloat(fs.Score, 'g', -1, 64)})
	}
	return WriteTable(path, strategy, rows)
}

func cellValue(v string, header bool) interface{} {
	if header {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && strconv.FormatFloat(f, 'g', -1, 64) == v {
		return f
	}
	return v
}
