package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/foxxcyber/equiptrack/internal/models"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetFound     = "Encontrados"
	sheetUnmatched = "Não encontrados"
	sheetEquipment = "Equipamentos"
)

// WriteReconciliationCSV writes one row per MAC: mac,status,location
func WriteReconciliationCSV(w io.Writer, result *models.ReconciliationResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"mac", "status", "location"}); err != nil {
		return err
	}
	for _, g := range result.Groups {
		for _, mac := range g.MACs {
			if err := cw.Write([]string{mac, string(models.MACStatusInStock), g.Location}); err != nil {
				return err
			}
		}
	}
	for _, mac := range result.Unmatched {
		if err := cw.Write([]string{mac, string(models.MACStatusUnmatched), ""}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteReconciliationXLSX writes found MACs (by location) and unmatched MACs to separate sheets
func WriteReconciliationXLSX(w io.Writer, result *models.ReconciliationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetFound); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetUnmatched); err != nil {
		return err
	}

	f.SetCellValue(sheetFound, "A1", "Local")
	f.SetCellValue(sheetFound, "B1", "MAC")
	row := 2
	for _, g := range result.Groups {
		for _, mac := range g.MACs {
			f.SetCellValue(sheetFound, "A"+fmt.Sprint(row), g.Location)
			f.SetCellValue(sheetFound, "B"+fmt.Sprint(row), mac)
			row++
		}
	}

	f.SetCellValue(sheetUnmatched, "A1", "MAC")
	for i, mac := range result.Unmatched {
		f.SetCellValue(sheetUnmatched, "A"+fmt.Sprint(i+2), mac)
	}

	return f.Write(w)
}

// WriteDocumentXLSX writes a saved document's equipment table with a totals row
func WriteDocumentXLSX(w io.Writer, doc *models.MovementDocumentWithEquipment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetEquipment); err != nil {
		return err
	}

	headings := []string{"Modelo", "Código do produto", "Quantidade", "MACs"}
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetEquipment, cell, h)
	}

	row := 2
	total := 0
	for _, e := range doc.Equipment {
		code := ""
		if e.ProductCode != nil {
			code = *e.ProductCode
		}
		f.SetCellValue(sheetEquipment, "A"+fmt.Sprint(row), e.Model)
		f.SetCellValue(sheetEquipment, "B"+fmt.Sprint(row), code)
		f.SetCellValue(sheetEquipment, "C"+fmt.Sprint(row), e.Quantity)
		f.SetCellValue(sheetEquipment, "D"+fmt.Sprint(row), strings.Join(e.MACAddresses, ", "))
		total += e.Quantity
		row++
	}

	f.SetCellValue(sheetEquipment, "A"+fmt.Sprint(row), "Total")
	f.SetCellValue(sheetEquipment, "C"+fmt.Sprint(row), total)

	return f.Write(w)
}
