package recon

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"callrecon/internal"
)

// ExportRowsToXLSX writes the reconciliation review workbook: every target
// call in the window with its linked origin row, unlinked calls first.
func ExportRowsToXLSX(rows []internal.ReportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"target_id", "caller_phone", "category", "target_time", "target_payout",
		"enriched_payout", "enriched_revenue", "link_id",
		"origin_time", "origin_payout", "origin_revenue", "status",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		status := "unlinked"
		if row.LinkID != nil {
			status = "linked"
		}

		set(1, row.TargetID)
		set(2, row.TargetPhone)
		set(3, row.Category)
		set(4, row.TargetTime)
		set(5, row.TargetPayout)
		set(6, derefFloat(row.EnrichedPayout))
		set(7, derefFloat(row.EnrichedRevenue))
		set(8, derefString(row.LinkID))
		set(9, derefString(row.OriginTime))
		set(10, derefFloat(row.OriginPayout))
		set(11, derefFloat(row.OriginRevenue))
		set(12, status)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
