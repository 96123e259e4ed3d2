package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alerts "facility-cloud/internal/alerts/domain"
	"facility-cloud/internal/commandlog"
)

// BuildAlertHistoryXLSX renders an alert history workbook.
func BuildAlertHistoryXLSX(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Rule", "Type", "Raised", "Equipment", "Site", "Severity", "Status", "Acknowledged By", "Acknowledged At", "Resolved At", "Escalation Level", "Last Value"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, a := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.RuleID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.TS.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.EquipmentID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), a.SiteID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), a.Severity)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), a.Status)
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), a.AcknowledgedBy)
		_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", row), formatTime(a.AcknowledgedAt))
		_ = f.SetCellValue(sheet, fmt.Sprintf("K%d", row), formatTime(a.ResolvedAt))
		_ = f.SetCellValue(sheet, fmt.Sprintf("L%d", row), a.EscalationLevel)
		_ = f.SetCellValue(sheet, fmt.Sprintf("M%d", row), a.LastValue)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCommandLogXLSX renders a command log workbook.
func BuildCommandLogXLSX(items []commandlog.Item) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "command-log"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "ID")
	_ = f.SetCellValue(sheet, "B1", "Timestamp")
	_ = f.SetCellValue(sheet, "C1", "Actor")
	_ = f.SetCellValue(sheet, "D1", "Action")
	_ = f.SetCellValue(sheet, "E1", "Details")
	for i, item := range items {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.Actor)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.Action)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.Details)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertHistoryCSV renders alert history as CSV.
func BuildAlertHistoryCSV(list []alerts.Alert) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "rule_id", "type", "ts", "equipment_id", "site_id", "severity", "status", "acknowledged_by", "acknowledged_at", "resolved_at", "escalation_level", "last_value"}); err != nil {
		return nil, err
	}
	for _, a := range list {
		record := []string{
			a.ID,
			a.RuleID,
			a.Type,
			a.TS.Format(time.RFC3339),
			a.EquipmentID,
			a.SiteID,
			a.Severity,
			a.Status,
			a.AcknowledgedBy,
			formatTime(a.AcknowledgedAt),
			formatTime(a.ResolvedAt),
			strconv.Itoa(a.EscalationLevel),
			strconv.FormatFloat(a.LastValue, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertSummaryPDF renders an alert summary report for a time window.
func BuildAlertSummaryPDF(siteID string, from, to time.Time, list []alerts.Alert) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if siteID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Site: %s", siteID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", from.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", to.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Alerts: %d", len(list)))
	pdf.Ln(8)

	// Counts by severity
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range countBy(list, func(a alerts.Alert) string { return a.Severity }) {
		pdf.CellFormat(60, 6, row.key, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, strconv.Itoa(row.count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range countBy(list, func(a alerts.Alert) string { return a.Status }) {
		pdf.CellFormat(60, 6, row.key, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, strconv.Itoa(row.count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Raised", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Equipment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, a := range list {
		pdf.CellFormat(35, 6, a.TS.Format("01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, a.EquipmentID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, a.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, a.Severity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, a.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countRow struct {
	key   string
	count int
}

func countBy(list []alerts.Alert, keyOf func(alerts.Alert) string) []countRow {
	counts := map[string]int{}
	for _, a := range list {
		key := keyOf(a)
		if key == "" {
			key = "unknown"
		}
		counts[key]++
	}
	rows := make([]countRow, 0, len(counts))
	for key, count := range counts {
		rows = append(rows, countRow{key: key, count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
