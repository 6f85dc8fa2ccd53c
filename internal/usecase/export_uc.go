package usecase

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// ExportUC moves the catalog in and out of spreadsheets for bulk edits.
type ExportUC struct {
	API domain.CatalogAPI
}

const exportSheet = "Products"

var exportHeader = []string{"Name", "Code", "Description", "Price", "Category", "Images"}

func (uc *ExportUC) ExportXLSX(ctx context.Context, w io.Writer) error {
	products, err := uc.API.ListProducts(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	for i, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}
	for r, p := range products {
		urls := make([]string, len(p.Images))
		for i, img := range p.Images {
			urls[i] = img.URL
		}
		category := p.Category.Name
		if category == "" {
			category = p.Category.ID
		}
		row := []any{p.Name, p.Code, p.Description, p.Price, category, strings.Join(urls, " ")}
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

// ImportXLSX bulk-adds products from a spreadsheet laid out like the
// export: Name, Code, Description, Price, Category. Rows without a name
// or with an unparsable price are skipped, not fatal.
func (uc *ExportUC) ImportXLSX(ctx context.Context, r io.Reader) (added, skipped int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, 0, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return 0, 0, err
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		name := cell(0)
		if name == "" {
			skipped++
			continue
		}
		price, perr := strconv.ParseFloat(cell(3), 64)
		if perr != nil || price < 0 {
			log.Warn().Int("row", i+1).Str("name", name).Msg("import: bad price, row skipped")
			skipped++
			continue
		}
		in := domain.ProductInput{
			Name:        name,
			Code:        cell(1),
			Description: cell(2),
			Price:       price,
			CategoryID:  cell(4),
		}
		if err := uc.API.AddProduct(ctx, in, nil); err != nil {
			log.Warn().Err(err).Int("row", i+1).Str("name", name).Msg("import: add failed, row skipped")
			skipped++
			continue
		}
		added++
	}
	return added, skipped, nil
}
