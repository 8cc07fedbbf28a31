// Package report renders placement listings as spreadsheet downloads.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xuri/excelize/v2"
)

// Format is an export file type
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const placementSheet = "Placements"

var placementHeader = []string{
	"ID", "Warehouse", "Area", "Item code", "Item name",
	"Quantity", "Volume (m3)", "Status", "Placed at", "Expires at", "Created by",
}

// ParseFormat accepts xlsx (also "excel") and csv. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", apperr.Invalid("format", "must be xlsx or csv")
}

// ContentType is the MIME type of f
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names an export taken at t
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("placements_%s.%s", t.UTC().Format("2006-01-02_15-04-05"), f)
}

// Placements writes one row per placement. Relations should be preloaded;
// missing ones leave their columns blank.
func Placements(w io.Writer, list []models.Placement, format Format) error {
	switch format {
	case FormatCSV:
		return placementsCSV(w, list)
	case FormatXLSX:
		return placementsXLSX(w, list)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func placementRow(p models.Placement) []interface{} {
	var warehouse, area, code, name string
	var volume float64
	if p.Warehouse != nil {
		warehouse = p.Warehouse.Name
	}
	if p.Area != nil {
		area = p.Area.Code
	}
	if p.Item != nil {
		code, name = p.Item.Code, p.Item.Name
		volume = p.Item.Volume() * float64(p.Quantity)
	}
	expires := ""
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		int(p.ID), warehouse, area, code, name,
		p.Quantity, volume, string(p.Status),
		p.PlacedAt.UTC().Format(time.RFC3339), expires, p.CreatedBy,
	}
}

func placementsCSV(w io.Writer, list []models.Placement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(placementHeader); err != nil {
		return err
	}
	for _, p := range list {
		row := placementRow(p)
		record := make([]string, len(row))
		for i, v := range row {
			switch v := v.(type) {
			case float64:
				record[i] = strconv.FormatFloat(v, 'f', 4, 64)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func placementsXLSX(w io.Writer, list []models.Placement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), placementSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(placementHeader))
	for i, h := range placementHeader {
		header[i] = h
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(placementSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, p := range list {
		if err := setRow(f, i+2, placementRow(p)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(placementSheet, "B", "E", 20); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(placementSheet, cell, v); err != nil {
			return fmt.Errorf("cell %s: %w", cell, err)
		}
	}
	return nil
}
