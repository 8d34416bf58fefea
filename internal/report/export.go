package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/schedule"
)

const dateLayout = "2006-01-02"

// BuildDueXLSX renders the dashboard as a workbook with a summary sheet and a
// due-for-repair sheet.
func BuildDueXLSX(d Dashboard) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	dueSheet := "due"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dueSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Machine Maintenance Report")
	_ = f.SetCellValue(summarySheet, "A2", "Generated")
	_ = f.SetCellValue(summarySheet, "B2", d.GeneratedAt.Format(time.RFC3339))

	row := 4
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Status")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Machines")
	for _, b := range schedule.Bands {
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(b))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), d.ByStatus[b])
	}

	row += 2
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Location")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Machines")
	for _, loc := range model.Locations {
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(loc))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), d.ByLocation[loc])
	}

	headers := []string{"Name", "Location", "Last Repair", "Next Repair", "Remaining Days", "Status", "Parts"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(dueSheet, cell, h)
	}
	for i, item := range d.Due {
		r := i + 2
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("A%d", r), item.Machine.Name)
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("B%d", r), string(item.Machine.Location))
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("C%d", r), item.Machine.LastRepairDate.Format(dateLayout))
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("D%d", r), item.Status.NextRepairDate.Format(dateLayout))
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("E%d", r), item.Status.RemainingDays)
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("F%d", r), string(item.Status.Band))
		_ = f.SetCellValue(dueSheet, fmt.Sprintf("G%d", r), strings.Join(item.Machine.Parts, ", "))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDuePDF renders the due-for-repair list as a one-table PDF.
func BuildDuePDF(d Dashboard) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Machines Due For Repair")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", d.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	for _, b := range schedule.Bands {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", b, d.ByStatus[b]))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Next Repair", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range d.Due {
		pdf.CellFormat(60, 6, item.Machine.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, string(item.Machine.Location), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, item.Status.NextRepairDate.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", item.Status.RemainingDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(item.Status.Band), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
