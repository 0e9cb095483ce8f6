package reader

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readWorkbook reads every sheet of an .xlsx file. Cell values are taken
// raw, so dates arrive as Excel serials and amounts without display
// formatting.
func (r *Reader) readWorkbook(ctx context.Context, path string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []sheet
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.skipped(name) {
			out = append(out, sheet{name: name})
			continue
		}

		grid, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			out = append(out, sheet{name: name, err: fmt.Errorf("read rows: %w", err)})
			continue
		}
		t, err := r.buildTable(grid)
		out = append(out, sheet{name: name, table: t, err: err})
	}
	return out, nil
}
