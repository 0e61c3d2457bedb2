package export

import (
	"fmt"
	"io"
	"time"

	"advocat/internal/models"

	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column describes one column of an exported table.
type Column[T any] struct {
	Header string
	Width  float64
	Value  func(T) interface{}
}

var BookingColumns = []Column[models.Booking]{
	{Header: "ID", Width: 8, Value: func(b models.Booking) interface{} { return b.ID }},
	{Header: "Firstname", Width: 20, Value: func(b models.Booking) interface{} { return b.Firstname }},
	{Header: "Lastname", Width: 20, Value: func(b models.Booking) interface{} { return b.Lastname }},
	{Header: "Email", Width: 30, Value: func(b models.Booking) interface{} { return b.Email }},
	{Header: "Phone", Width: 18, Value: func(b models.Booking) interface{} { return b.Phone }},
	{Header: "Datetime", Width: 20, Value: func(b models.Booking) interface{} { return b.Datetime }},
}

var ContactColumns = []Column[models.Contact]{
	{Header: "ID", Width: 8, Value: func(c models.Contact) interface{} { return c.ID }},
	{Header: "Firstname", Width: 20, Value: func(c models.Contact) interface{} { return c.Firstname }},
	{Header: "Lastname", Width: 20, Value: func(c models.Contact) interface{} { return c.Lastname }},
	{Header: "Email", Width: 30, Value: func(c models.Contact) interface{} { return c.Email }},
	{Header: "Message", Width: 60, Value: func(c models.Contact) interface{} { return c.Message }},
}

// WriteTable writes rows as a single sheet workbook to w.
func WriteTable[T any](w io.Writer, sheetName string, cols []Column[T], rows []T) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col.Header); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		if col.Width > 0 {
			name, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(sheetName, name, name, col.Width)
		}
	}

	for r, row := range rows {
		for i, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheetName, cell, col.Value(row)); err != nil {
				return fmt.Errorf("error writing row %d: %w", r+1, err)
			}
		}
	}

	if len(cols) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		_ = f.AutoFilter(sheetName, "A1:"+last, nil)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func Bookings(w io.Writer, bookings []models.Booking) error {
	return WriteTable(w, "Bookings", BookingColumns, bookings)
}

func Contacts(w io.Writer, contacts []models.Contact) error {
	return WriteTable(w, "Contacts", ContactColumns, contacts)
}

// FileName is the download name of an export made at now.
func FileName(kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", kind, now.Format("2006-01-02_1504"))
}
