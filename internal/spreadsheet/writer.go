package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
)

// SheetName is the name of the single sheet of an exported workbook.
const SheetName = "Contacts"

// textFormat is the built-in number format "@" that keeps cells as text.
const textFormat = 49

// Writer serializes contacts into a workbook.
type Writer interface {
	Write(contacts []model.Contact) ([]byte, error)
}

// XLSXWriter writes xlsx workbooks with excelize.
type XLSXWriter struct{}

// Write returns a workbook with a header row and one row per contact, in the
// given order.
func (XLSXWriter) Write(contacts []model.Contact) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: textFormat})
	if err != nil {
		return nil, fmt.Errorf("create text style: %w", err)
	}
	if err := f.SetColStyle(SheetName, "A:D", style); err != nil {
		return nil, fmt.Errorf("set text style: %w", err)
	}

	titles := make([]interface{}, len(header))
	for i, title := range header {
		titles[i] = title
	}
	if err := f.SetSheetRow(SheetName, "A1", &titles); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, c := range contacts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{c.Name, c.Phone, c.Email, c.Address}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write contact %d: %w", c.Id, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
