package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"golang-ledger-ingestion/pkg/errors"
)

// ParseXLSX reads the first sheet of a workbook through the same header role
// detection as CSV.
func (p *TableParser) ParseXLSX(ctx context.Context, r io.Reader, name string) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "", "", err).
			WithSuggestion("Export the sheet as .xlsx or CSV and try again")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "sheet", "", fmt.Errorf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidData, name, 0, "sheet", sheet, err)
	}

	p.logger.WithFields(map[string]interface{}{
		"document": name,
		"sheet":    sheet,
		"rows":     len(rows),
	}).Debug("Read spreadsheet")

	return p.parseTable(ctx, rows, name)
}
