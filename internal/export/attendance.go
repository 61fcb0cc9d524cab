package export

import (
	"bytes"
	"fmt"
	"time"

	"unispace/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Attendance"

var headers = []string{
	"Booking ID", "Facility", "Requester", "Scheduled start", "Scheduled end",
	"Check-in", "Check-out", "Actual end", "Status", "Classification", "Purpose",
}

// AttendanceXLSX renders the attendance log as a spreadsheet and returns
// it as an in-memory buffer for download endpoints.
func AttendanceXLSX(bookings []*models.Booking, from, to time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Attendance %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 3
		values := []any{
			b.ID,
			b.FacilityName,
			b.RequesterID,
			b.StartTime.Format("02.01.2006 15:04"),
			b.EndTime.Format("02.01.2006 15:04"),
			formatOptional(b.CheckedInAt),
			formatOptional(b.CheckedOutAt),
			formatOptional(b.ActualEndTime),
			string(b.Status),
			classificationLabel(b.Attendance),
			b.Purpose,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 36)
	_ = f.SetColWidth(sheetName, "B", "C", 22)
	_ = f.SetColWidth(sheetName, "D", "H", 18)
	_ = f.SetColWidth(sheetName, "I", "K", 16)

	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf, nil
}

// FileName builds the download name for an attendance export.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("attendance_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006 15:04")
}

func classificationLabel(a models.Attendance) string {
	if a == models.AttendanceUnset {
		return "unresolved"
	}
	return string(a)
}
