// Package spreadsheet imports contacts from CSV and Excel files and exports
// them as an xlsx workbook.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
)

// Kind is a supported spreadsheet file format.
type Kind int

const (
	CSV Kind = iota + 1
	XLSX
	XLS
)

func (k Kind) String() string {
	switch k {
	case CSV:
		return "csv"
	case XLSX:
		return "xlsx"
	case XLS:
		return "xls"
	}
	return "unknown"
}

// KindOf derives the format from the extension of filename, ignoring case.
func KindOf(filename string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return CSV, nil
	case ".xlsx", ".xlsm":
		return XLSX, nil
	case ".xls":
		return XLS, nil
	}
	return 0, fmt.Errorf("%w: %q is not a .csv, .xls or .xlsx file", common.ErrUnsupportedFormat, filename)
}

// Header titles of the contact columns.
var header = []string{"Name", "Phone", "Email", "Address"}

// schema maps the contact fields to column positions of a sheet. A negative
// position means the column is absent.
type schema struct {
	name, phone, email, address int
}

// newSchema locates the columns by their titles, ignoring case and
// surrounding whitespace. Without a Name or Phone column every data row
// converts to an input that fails validation.
func newSchema(titles []string) schema {
	s := schema{name: -1, phone: -1, email: -1, address: -1}
	for i, title := range titles {
		switch strings.ToLower(strings.TrimSpace(title)) {
		case "name":
			s.name = i
		case "phone":
			s.phone = i
		case "email":
			s.email = i
		case "address":
			s.address = i
		}
	}
	return s
}

// input converts a data row. Missing cells become empty strings.
func (s schema) input(row []string) model.ContactInput {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return model.ContactInput{
		Name:    cell(s.name),
		Phone:   cell(s.phone),
		Email:   cell(s.email),
		Address: cell(s.address),
	}.Trimmed()
}

// parse reads all rows of the first sheet and converts them with the schema
// taken from the first non-blank row.
func parse(kind Kind, data []byte) ([]model.ContactInput, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrUnsupportedFormat)
	}
	var rows [][]string
	var err error
	switch kind {
	case CSV:
		rows, err = readCSV(data)
	case XLSX:
		rows, err = readXLSX(data)
	case XLS:
		rows, err = readXLS(data)
	default:
		err = errors.New("unknown kind")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrUnsupportedFormat, kind, err)
	}

	for i, row := range rows {
		if blank(row) {
			continue
		}
		s := newSchema(row)
		inputs := make([]model.ContactInput, 0, len(rows)-i-1)
		for _, r := range rows[i+1:] {
			if blank(r) {
				continue
			}
			inputs = append(inputs, s.input(r))
		}
		return inputs, nil
	}
	return nil, fmt.Errorf("%w: no header row", common.ErrUnsupportedFormat)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The xls decoder panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
