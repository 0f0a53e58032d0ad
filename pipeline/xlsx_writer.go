package pipeline

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/zemeslab/sslv-plots/models"
)

const xlsxSheet = "Ads"

// XLSXWriter accumulates records into a spreadsheet and saves it on Close.
type XLSXWriter struct {
	filename string
	file     *excelize.File
	nextRow  int
	mu       sync.Mutex
}

// NewXLSXWriter initialises the spreadsheet with a header row.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename xlsx sheet: %w", err)
	}

	for i, h := range recordHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xlsx header cell: %w", err)
		}
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
	}

	return &XLSXWriter{
		filename: filename,
		file:     f,
		nextRow:  2,
	}, nil
}

// Write appends records as spreadsheet rows. Numeric fields are written as
// numbers so spreadsheet consumers can aggregate them; nil stays an empty
// cell.
func (xw *XLSXWriter) Write(records []*models.AdRecord) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, rec := range records {
		values := []interface{}{
			rec.Link,
			rec.City,
			rec.Street,
			rec.Village,
			rec.RawArea,
			rec.RawPrice,
			rec.LandType,
			rec.CadastralNumber,
			rec.PostedDate,
			rec.CollectionDate,
			floatCell(rec.PriceEUR),
			floatCell(rec.PriceEURPerM2),
			floatCell(rec.AreaQuantity),
			rec.AreaUnit,
		}
		for i, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, xw.nextRow)
			if err != nil {
				return fmt.Errorf("xlsx cell: %w", err)
			}
			if err := xw.file.SetCellValue(xlsxSheet, cell, v); err != nil {
				return fmt.Errorf("write xlsx record: %w", err)
			}
		}
		xw.nextRow++
	}
	return nil
}

func floatCell(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// Close saves the spreadsheet to disk and releases it.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if err := xw.file.SaveAs(xw.filename); err != nil {
		xw.file.Close()
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return xw.file.Close()
}

// Validate ensures at least one record row was written. The file itself
// only exists after Close, so this checks the in-memory sheet.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.nextRow <= 2 {
		return fmt.Errorf("xlsx sheet has no records")
	}
	return nil
}
